package service

import "errors"

var (
	ErrConsultationNotFound  = errors.New("consultation not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrResearcherNotFound    = errors.New("researcher not found")
	ErrStatusConflict        = errors.New("consultation status does not allow this action")
	ErrInsufficientEnergy    = errors.New("insufficient energy")
	ErrNoResearchersOnline   = errors.New("no researchers online")
	ErrInvalidQuestion       = errors.New("invalid question")
	ErrEmptyAnswer           = errors.New("answer is empty")
	ErrNotAssigned           = errors.New("researcher is not assigned to consultation")
	ErrAlreadyAnswered       = errors.New("researcher already answered")
	ErrNotAnswered           = errors.New("researcher has not answered")
	ErrResearcherBusy        = errors.New("researcher is already in a conversation")
	ErrNotParticipant        = errors.New("user is not a participant of consultation")
	ErrNoActiveConsultation  = errors.New("no active consultation")
	ErrLedgerAlreadyRecorded = errors.New("ledger entry already recorded")
	ErrInconsistentState     = errors.New("consultation data is inconsistent")
)
