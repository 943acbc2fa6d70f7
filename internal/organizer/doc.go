// Package organizer files ripped titles into the media library.
//
// TV episodes land under the show and season directory named by their
// matched episode code; movies get a folder per title. Titles flagged
// for review are parked in the review directory instead so a human can
// finish the job. Moves prefer rename and fall back to a checksummed
// copy across filesystems.
package organizer
