package app

import "errors"

var (
	ErrDuplicateMeeting = errors.New("meeting already exists")
	ErrMeetingNotFound  = errors.New("meeting not found")
)
