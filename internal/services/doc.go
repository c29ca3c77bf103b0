// Package services holds the error taxonomy shared by pipeline stages and the
// workflow manager, plus context annotation helpers for correlating log
// records with the bookmark being processed.
//
// Stages wrap failures with one of the exported sentinel markers so the
// workflow manager can decide whether to requeue a message without inspecting
// provider-specific detail.
package services
