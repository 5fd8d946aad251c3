package localdb

import (
	"context"

	"github.com/example/loom/internal/ctxutil"
	"github.com/example/loom/internal/ports/secondary"
)

// AuditLog records lifecycle actions in the local database's audit_log
// table. Entries are advisory; writes that fail are reported but the
// caller is expected to carry on.
type AuditLog struct {
	backend  *Backend
	repoPath string
}

// NewAuditLog creates an audit log writing to the given repository's
// database.
func NewAuditLog(backend *Backend, repoPath string) *AuditLog {
	return &AuditLog{backend: backend, repoPath: repoPath}
}

func (a *AuditLog) write(ctx context.Context, taskID, action, detail string) error {
	db, err := a.backend.db(a.repoPath)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		"INSERT INTO audit_log (task_id, action, detail, actor) VALUES (?, ?, ?, ?)",
		taskID, action, detail, ctxutil.ActorFromContext(ctx))
	return err
}

func (a *AuditLog) LogClose(ctx context.Context, taskID, reason string) error {
	return a.write(ctx, taskID, "close", reason)
}

func (a *AuditLog) LogTransition(ctx context.Context, taskID, action, detail string) error {
	return a.write(ctx, taskID, action, detail)
}

func (a *AuditLog) LogError(ctx context.Context, taskID, action, message string) error {
	return a.write(ctx, taskID, "error:"+action, message)
}

// Ensure AuditLog implements the port.
var _ secondary.AuditLog = (*AuditLog)(nil)
