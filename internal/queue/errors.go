package queue

import (
	"errors"
	"strings"
)

// ErrNotFound reports that a targeted transition matched no live row.
var ErrNotFound = errors.New("task not found")

// ErrDuplicateMediaID reports an insert that collided with an existing
// task's media ID.
var ErrDuplicateMediaID = errors.New("media id already tracked")

// ErrDuplicateFingerprint reports an insert that collided with an existing
// task's content fingerprint.
var ErrDuplicateFingerprint = errors.New("fingerprint already tracked")

const sqliteConstraintCode = 19

// classifyConstraint maps a SQLite unique-constraint violation onto the
// matching sentinel. The admission path checks for duplicates before
// inserting; the unique indexes are the backstop against races.
func classifyConstraint(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	var coder interface{ Code() int }
	constraint := errors.As(err, &coder) && coder.Code()%256 == sqliteConstraintCode
	if !constraint && !strings.Contains(msg, "UNIQUE constraint failed") {
		return err
	}
	switch {
	case strings.Contains(msg, "upload_tasks.media_id"):
		return ErrDuplicateMediaID
	case strings.Contains(msg, "upload_tasks.fingerprint"):
		return ErrDuplicateFingerprint
	}
	return err
}
