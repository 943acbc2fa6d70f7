// Package matcher identifies which episode a ripped title contains.
//
// The matcher walks the title's timeline in fixed windows, transcribes
// each sampled window through a narrow Transcriber collaborator, and
// scores the transcript against every episode's subtitle text near the
// same timestamp. Windows that score above a vote floor count as votes
// for their best episode; a running average above the early-exit
// threshold ends sampling immediately. The final verdict carries the
// evidence (votes, coverage, score gap, runner-ups) so a reviewer can
// second-guess any match that did not auto-accept.
package matcher
