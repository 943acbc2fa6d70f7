// Package whisper wraps ffmpeg audio extraction and a local whisper CLI to
// turn chunks of a ripped title into transcript text. Each chunk is extracted
// as a mono 16kHz WAV, transcribed, and cleaned up before the text is handed
// back to the episode matcher.
package whisper
