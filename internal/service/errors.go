package service

import (
	"errors"
)

var (
	ErrSameParticipant     = errors.New("cannot start a session with yourself")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrNotParticipant      = errors.New("you are not a participant of this session")
	ErrMessageNotFound     = errors.New("no matching message found")
	ErrGroupNotFound       = errors.New("group not found")
	ErrNotGroupMember      = errors.New("you are not a member of this group")
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)
