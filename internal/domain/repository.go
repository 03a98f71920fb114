package domain

import (
	"context"
	"encoding/json"
)

// JobRepository persists pipeline jobs. Transition methods only touch rows
// whose current status allows the move and return ErrInvalidTransition
// otherwise.
type JobRepository interface {
	// Create inserts a PENDING job. Inserting an existing id is a no-op.
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	MarkRunning(ctx context.Context, jobID string) error
	Complete(ctx context.Context, jobID string, output json.RawMessage) error
	Fail(ctx context.Context, jobID string, errMsg string) error
	// ClaimPending picks the oldest PENDING job, or ErrNotFound.
	ClaimPending(ctx context.Context) (*Job, error)
}

type ArtifactRepository interface {
	// Create inserts an artifact. Inserting an existing id is a no-op.
	Create(ctx context.Context, artifact *Artifact) error
	GetByID(ctx context.Context, id string) (*Artifact, error)
	ListBySession(ctx context.Context, sessionID string) ([]Artifact, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	SaveDesignState(ctx context.Context, id string, state json.RawMessage) error
	SetProductID(ctx context.Context, id string, productID int64) error
}

type MessageRepository interface {
	// Create inserts a message. Inserting an existing id is a no-op.
	Create(ctx context.Context, msg *Message) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]Message, error)
}
