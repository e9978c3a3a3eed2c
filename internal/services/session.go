package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"catalog-import-service/internal/models"
)

// SessionState is the stage of an upload session.
type SessionState string

const (
	SessionEditing    SessionState = "EDITING"
	SessionValidated  SessionState = "VALIDATED"
	SessionCommitting SessionState = "COMMITTING"
	SessionCommitted  SessionState = "COMMITTED"
)

// Importer is the validate and commit surface an UploadSession drives.
type Importer interface {
	Validate(ctx context.Context, tenantID string, files ImportFiles, categoryID string) (*models.ValidationReport, error)
	Commit(ctx context.Context, tenantID, actorID string, files ImportFiles, categoryID string) (*models.CommitResult, error)
}

// UploadSession holds the files of one import while the caller fixes and
// retries them. It lives only in memory and is discarded after commit.
//
// Editing -> Validated -> Committing -> Committed. Replacing a file or the
// category drops a Validated session back to Editing. A failed commit wrote
// nothing, so the session returns to the state it was in before the commit.
type UploadSession struct {
	mu         sync.Mutex
	tenantID   string
	state      SessionState
	files      ImportFiles
	categoryID string
	report     *models.ValidationReport
	result     *models.CommitResult
}

// NewUploadSession starts an empty session for a tenant.
func NewUploadSession(tenantID string) *UploadSession {
	return &UploadSession{tenantID: tenantID, state: SessionEditing}
}

func (s *UploadSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Report returns the last validation report, if any.
func (s *UploadSession) Report() *models.ValidationReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

func (s *UploadSession) Result() *models.CommitResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *UploadSession) SetDetails(f ImportFile) error {
	return s.edit(func() { s.files.Details = f })
}

func (s *UploadSession) SetPricing(f ImportFile) error {
	return s.edit(func() { s.files.Pricing = f })
}

func (s *UploadSession) SetCategory(categoryID string) error {
	return s.edit(func() { s.categoryID = categoryID })
}

func (s *UploadSession) edit(apply func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionEditing && s.state != SessionValidated {
		return s.transitionError("edit")
	}
	apply()
	s.state = SessionEditing
	s.report = nil
	return nil
}

// Validate runs a dry run over the current files. A clean report moves the
// session to Validated.
func (s *UploadSession) Validate(ctx context.Context, imp Importer) (*models.ValidationReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionEditing && s.state != SessionValidated {
		return nil, s.transitionError("validate")
	}

	report, err := imp.Validate(ctx, s.tenantID, s.files, s.categoryID)
	if err != nil {
		return nil, err
	}
	s.report = report
	if report.Succeeded() {
		s.state = SessionValidated
	} else {
		s.state = SessionEditing
	}
	return report, nil
}

// Commit writes the batch. Only a Validated session may commit.
func (s *UploadSession) Commit(ctx context.Context, imp Importer, actorID string) (*models.CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionValidated {
		return nil, s.transitionError("commit")
	}

	s.state = SessionCommitting
	result, err := imp.Commit(ctx, s.tenantID, actorID, s.files, s.categoryID)
	if err != nil {
		var failed *ValidationFailedError
		if errors.As(err, &failed) {
			s.report = failed.Report
			s.state = SessionEditing
		} else {
			s.state = SessionValidated
		}
		return nil, err
	}

	s.result = result
	s.state = SessionCommitted
	return result, nil
}

func (s *UploadSession) transitionError(action string) error {
	return fmt.Errorf("%w: cannot %s a session in state %s", ErrInvalidTransition, action, s.state)
}
