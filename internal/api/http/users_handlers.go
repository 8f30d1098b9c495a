package http

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/opencourse/grader/internal/rbac"
)

type userRow struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Password string `json:"password,omitempty"` // plaintext on input; hashed before storage
}

// POST /users/bulk
// Accepts a JSON array in the body, or a multipart file= holding JSON or CSV.
func BulkUpsertUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		src := io.Reader(r.Body)
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			f, _, err := r.FormFile("file")
			if err != nil {
				http.Error(w, "file required", http.StatusBadRequest)
				return
			}
			defer f.Close()
			src = f
		}
		rows, err := decodeUserPayload(src)
		if err != nil {
			http.Error(w, "bad payload: "+err.Error(), http.StatusBadRequest)
			return
		}

		inserted, updated, err := upsertUsers(r.Context(), db, rows)
		if err != nil {
			http.Error(w, "upsert users: "+err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"inserted": inserted, "updated": updated})
	}
}

// GET /users?role=
func ListUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := `SELECT id, username, role FROM users ORDER BY username`
		args := []any{}
		if role := r.URL.Query().Get("role"); role != "" {
			query = `SELECT id, username, role FROM users WHERE role=$1 ORDER BY username`
			args = append(args, role)
		}
		rows, err := db.QueryContext(r.Context(), query, args...)
		if err != nil {
			http.Error(w, "list users: "+err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		out := []userRow{}
		for rows.Next() {
			var u userRow
			if err := rows.Scan(&u.ID, &u.Username, &u.Role); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			out = append(out, u)
		}
		if err := rows.Err(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

// decodeUserPayload tells JSON from CSV by peeking at the first byte, without
// consuming the stream.
func decodeUserPayload(r io.Reader) ([]userRow, error) {
	br := bufio.NewReader(r)
	first, err := br.Peek(1)
	if err != nil {
		return nil, errors.New("empty payload")
	}
	if first[0] == '[' || first[0] == '{' {
		var rows []userRow
		if err := json.NewDecoder(br).Decode(&rows); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
		return rows, nil
	}
	return usersFromCSV(br)
}

// usersFromCSV reads rows from a header-bearing CSV. id, username and role
// columns are required; password is optional.
func usersFromCSV(r io.Reader) ([]userRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"id", "username", "role"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	var rows []userRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := userRow{
			ID:       rec[col["id"]],
			Username: rec[col["username"]],
			Role:     strings.ToLower(rec[col["role"]]),
		}
		if i, ok := col["password"]; ok {
			row.Password = rec[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// upsertUsers applies the rows in one transaction. An existing user (matched
// by id or username) is updated, keeping its password hash unless the row
// carries a new password; a new user must carry one.
func upsertUsers(ctx context.Context, db *sql.DB, rows []userRow) (inserted, updated int, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	now := time.Now().Unix()
	for _, row := range rows {
		if row.Role == "" {
			row.Role = "student"
		}
		if _, known := rbac.RolePermissions[row.Role]; !known {
			return inserted, updated, fmt.Errorf("unknown role %q for user %s", row.Role, row.Username)
		}

		var hash string
		if row.Password != "" {
			b, herr := bcrypt.GenerateFromPassword([]byte(row.Password), 12)
			if herr != nil {
				return inserted, updated, herr
			}
			hash = string(b)
		}

		var existingID string
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM users WHERE id=$1 OR username=$2`, row.ID, row.Username).Scan(&existingID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			err = nil
			if hash == "" {
				return inserted, updated, fmt.Errorf("password required for new user %s", row.Username)
			}
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO users (id, username, password_hash, role, created_at) VALUES ($1,$2,$3,$4,$5)`,
				row.ID, row.Username, hash, row.Role, now); err != nil {
				return inserted, updated, err
			}
			inserted++
		case err != nil:
			return inserted, updated, err
		default:
			if hash != "" {
				_, err = tx.ExecContext(ctx,
					`UPDATE users SET username=$1, role=$2, password_hash=$3 WHERE id=$4`,
					row.Username, row.Role, hash, existingID)
			} else {
				_, err = tx.ExecContext(ctx,
					`UPDATE users SET username=$1, role=$2 WHERE id=$3`,
					row.Username, row.Role, existingID)
			}
			if err != nil {
				return inserted, updated, err
			}
			updated++
		}
	}
	return inserted, updated, nil
}
