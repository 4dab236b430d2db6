// Package report turns run statistics into console output, multi-run
// summaries and report files.
//
// Each run prints five lines, multi-pass (MP) then single-pass (SP):
//
//	Time elapsed 20123456 ns
//	MP : Speed = 52.104 Mpps
//	Error ratio = 0/1048576
//	Time elapsed 3381200 ns
//	SP : Speed = 310.117 Mpps
//
// Report files are encoded by extension (.json, .yaml, .toml, .csv) and may
// be compressed with a trailing .gz or .zst.
package report
