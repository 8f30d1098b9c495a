package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opencourse/grader/internal/grading"
)

// SQLStore persists state rows via database/sql. Both supported drivers (pgx
// and modernc sqlite) accept $N placeholders, so the SQL is shared.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx so the read paths can run
// inside or outside a transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLStore) LookupState(ctx context.Context, studentID, courseID, moduleKey string) (*grading.ModuleState, error) {
	return lookupState(ctx, s.db, studentID, courseID, moduleKey)
}

func (s *SQLStore) HasStateFor(ctx context.Context, studentID, courseID string, moduleKeys []string) (bool, error) {
	return hasStateFor(ctx, s.db, studentID, courseID, moduleKeys)
}

func (s *SQLStore) SubmittedProblems(ctx context.Context, courseID string, fn func(grading.SubmittedRow) error) error {
	return submittedProblems(ctx, s.db, courseID, fn)
}

// View runs fn in one transaction. The transaction commits on success and is
// rolled back, logged, and the error returned unchanged otherwise.
func (s *SQLStore) View(ctx context.Context, fn func(grading.StateReader) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&txReader{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Printf("state: rollback failed: %v", rbErr)
		}
		log.Printf("state: transaction rolled back: %v", err)
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) Upsert(ctx context.Context, rec Record) (Record, error) {
	now := time.Now().Unix()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ModuleType == "" {
		rec.ModuleType = "problem"
	}
	if rec.State == "" {
		rec.State = "{}"
	}
	rec.CreatedAt = now
	rec.ModifiedAt = now

	_, err := s.db.ExecContext(ctx, `INSERT INTO student_modules
		(id, student_id, course_id, module_key, module_type, grade, max_grade, state_json, created_at, modified_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (student_id, course_id, module_key) DO UPDATE SET
			module_type=EXCLUDED.module_type,
			grade=EXCLUDED.grade,
			max_grade=EXCLUDED.max_grade,
			state_json=EXCLUDED.state_json,
			modified_at=EXCLUDED.modified_at`,
		rec.ID, rec.StudentID, rec.CourseID, rec.ModuleKey, rec.ModuleType,
		rec.Grade, rec.MaxGrade, rec.State, rec.CreatedAt, rec.ModifiedAt)
	if err != nil {
		return Record{}, fmt.Errorf("upsert state: %w", err)
	}
	return s.get(ctx, rec.StudentID, rec.CourseID, rec.ModuleKey)
}

func (s *SQLStore) get(ctx context.Context, studentID, courseID, moduleKey string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, student_id, course_id, module_key, module_type,
			grade, max_grade, state_json, created_at, modified_at
		FROM student_modules WHERE student_id=$1 AND course_id=$2 AND module_key=$3`,
		studentID, courseID, moduleKey)
	var rec Record
	if err := row.Scan(&rec.ID, &rec.StudentID, &rec.CourseID, &rec.ModuleKey, &rec.ModuleType,
		&rec.Grade, &rec.MaxGrade, &rec.State, &rec.CreatedAt, &rec.ModifiedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// txReader is the read-only view handed to grading inside a transaction.
type txReader struct {
	tx *sql.Tx
}

func (r *txReader) LookupState(ctx context.Context, studentID, courseID, moduleKey string) (*grading.ModuleState, error) {
	return lookupState(ctx, r.tx, studentID, courseID, moduleKey)
}

func (r *txReader) HasStateFor(ctx context.Context, studentID, courseID string, moduleKeys []string) (bool, error) {
	return hasStateFor(ctx, r.tx, studentID, courseID, moduleKeys)
}

func lookupState(ctx context.Context, q querier, studentID, courseID, moduleKey string) (*grading.ModuleState, error) {
	row := q.QueryRowContext(ctx, `SELECT grade, max_grade, state_json FROM student_modules
		WHERE student_id=$1 AND course_id=$2 AND module_key=$3`,
		studentID, courseID, moduleKey)
	var st grading.ModuleState
	if err := row.Scan(&st.Grade, &st.MaxGrade, &st.State); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

func hasStateFor(ctx context.Context, q querier, studentID, courseID string, moduleKeys []string) (bool, error) {
	if len(moduleKeys) == 0 {
		return false, nil
	}
	placeholders := make([]string, len(moduleKeys))
	args := []any{studentID, courseID}
	for i, key := range moduleKeys {
		placeholders[i] = fmt.Sprintf("$%d", i+3)
		args = append(args, key)
	}
	var one int
	row := q.QueryRowContext(ctx, `SELECT 1 FROM student_modules
		WHERE student_id=$1 AND course_id=$2 AND module_key IN (`+strings.Join(placeholders, ",")+`) LIMIT 1`,
		args...)
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func submittedProblems(ctx context.Context, q querier, courseID string, fn func(grading.SubmittedRow) error) error {
	rows, err := q.QueryContext(ctx, `SELECT id, student_id, module_key, state_json FROM student_modules
		WHERE course_id=$1 AND module_type='problem' AND grade IS NOT NULL`, courseID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var row grading.SubmittedRow
		if err := rows.Scan(&row.ID, &row.StudentID, &row.ModuleKey, &row.State); err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}
