// Package sentinel watches optical drives. A netlink monitor subscribes to
// udev block events and reports disc insertions for the configured devices,
// and a tray ejector opens the drive once a job finishes. Both sides talk to
// the kernel directly so no udev rules or helper scripts are required.
package sentinel
