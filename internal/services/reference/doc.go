// Package reference resolves reference subtitle directories for episode
// matching. The local provider reads pre-downloaded SRT files from a
// configured source directory and stages season matches into the subtitle
// cache under canonical episode-code names.
package reference
