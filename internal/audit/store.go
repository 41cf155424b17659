package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/valinor-ai/promptguard/internal/platform/database"
	"github.com/valinor-ai/promptguard/internal/sentinel"
)

const schema = `
CREATE TABLE IF NOT EXISTS validation_logs (
	id               UUID PRIMARY KEY,
	created_at       TIMESTAMPTZ NOT NULL,
	input_type       TEXT NOT NULL,
	security_level   TEXT NOT NULL,
	risk_score       INTEGER NOT NULL,
	is_safe          BOOLEAN NOT NULL,
	violation_count  INTEGER NOT NULL,
	violations       JSONB NOT NULL DEFAULT '[]',
	sanitized_prompt TEXT NOT NULL,
	user_id          TEXT,
	department       TEXT,
	request_id       TEXT,
	ocr_confidence   DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS validation_logs_created_at_idx ON validation_logs (created_at DESC);
CREATE INDEX IF NOT EXISTS validation_logs_security_level_idx ON validation_logs (security_level);
`

const entryColumns = "id, created_at, input_type, security_level, risk_score, is_safe, violation_count, " +
	"violations, sanitized_prompt, user_id, department, request_id, ocr_confidence"

const columnsPerEntry = 13

// Store persists validation log entries in Postgres.
type Store struct {
	db database.Querier
}

// NewStore creates a Store over db.
func NewStore(db database.Querier) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the validation_logs table and indexes if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating validation log schema: %w", err)
	}
	return nil
}

// Write implements Sink.
func (s *Store) Write(ctx context.Context, entries []Entry) error {
	return s.InsertBatch(ctx, entries)
}

// InsertBatch writes a batch of entries with one statement.
func (s *Store) InsertBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	sql, args, err := buildBatchInsert(entries)
	if err != nil {
		return fmt.Errorf("building batch insert: %w", err)
	}
	if _, err := s.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("inserting validation logs: %w", err)
	}
	return nil
}

// buildBatchInsert constructs a multi-row INSERT statement.
func buildBatchInsert(entries []Entry) (string, []any, error) {
	placeholders := make([]string, 0, len(entries))
	args := make([]any, 0, len(entries)*columnsPerEntry)

	for i, e := range entries {
		base := i * columnsPerEntry
		ph := make([]string, columnsPerEntry)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ", ")+")")

		violations := e.Violations
		if violations == nil {
			violations = []ViolationSummary{}
		}
		violationsJSON, err := json.Marshal(violations)
		if err != nil {
			return "", nil, fmt.Errorf("marshaling violations: %w", err)
		}

		args = append(args,
			e.ID, e.Timestamp, e.InputType, e.Level.Code(), e.RiskScore, e.IsSafe, e.ViolationCount,
			violationsJSON, e.SanitizedPrompt,
			nullString(e.UserID), nullString(e.Department), nullString(e.RequestID), e.OCRConfidence,
		)
	}

	sql := fmt.Sprintf("INSERT INTO validation_logs (%s) VALUES %s", entryColumns, strings.Join(placeholders, ", "))
	return sql, args, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ListParams defines filters for querying the validation log.
type ListParams struct {
	Page  int
	Limit int
	Level *sentinel.Level
	From  *time.Time
	To    *time.Time
	Query string
}

// Page is one page of log entries, newest first.
type Page struct {
	Logs       []Entry `json:"logs"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	TotalPages int     `json:"total_pages"`
}

// TypeCount is a violation category with its occurrence count.
type TypeCount struct {
	Type  sentinel.Category `json:"type"`
	Count int               `json:"count"`
}

// Summary aggregates the validation log over a time window.
type Summary struct {
	Total            int         `json:"total"`
	Safe             int         `json:"safe"`
	Warning          int         `json:"warning"`
	Danger           int         `json:"danger"`
	Blocked          int         `json:"blocked"`
	AverageRiskScore float64     `json:"average_risk_score"`
	TopViolations    []TypeCount `json:"top_violations"`
}

// buildWhere constructs the shared filter clause. Page and limit are ignored.
func buildWhere(p ListParams) (string, []any) {
	var conditions []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if p.Level != nil {
		add("security_level = $%d", p.Level.Code())
	}
	if p.From != nil {
		add("created_at >= $%d", *p.From)
	}
	if p.To != nil {
		add("created_at < $%d", *p.To)
	}
	if q := strings.TrimSpace(p.Query); q != "" {
		add("sanitized_prompt ILIKE $%d", "%"+escapeLike(q)+"%")
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// buildListQuery constructs the paginated SELECT and its count query.
func buildListQuery(p ListParams) (sql, countSQL string, args []any) {
	where, args := buildWhere(p)
	countSQL = "SELECT count(*) FROM validation_logs" + where
	sql = fmt.Sprintf(
		"SELECT %s FROM validation_logs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		entryColumns, where, len(args)+1, len(args)+2,
	)
	return sql, countSQL, args
}

// List returns one page of entries matching p.
func (s *Store) List(ctx context.Context, p ListParams) (Page, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 50
	}

	sql, countSQL, args := buildListQuery(p)

	var total int
	if err := s.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("counting validation logs: %w", err)
	}

	rows, err := s.db.Query(ctx, sql, append(args, p.Limit, (p.Page-1)*p.Limit)...)
	if err != nil {
		return Page{}, fmt.Errorf("querying validation logs: %w", err)
	}
	defer rows.Close()

	logs := []Entry{}
	for rows.Next() {
		var (
			e                             Entry
			level                         string
			violations                    []byte
			userID, department, requestID *string
		)
		if err := rows.Scan(
			&e.ID, &e.Timestamp, &e.InputType, &level, &e.RiskScore, &e.IsSafe, &e.ViolationCount,
			&violations, &e.SanitizedPrompt, &userID, &department, &requestID, &e.OCRConfidence,
		); err != nil {
			return Page{}, fmt.Errorf("scanning validation log: %w", err)
		}
		if e.Level, err = sentinel.ParseLevel(level); err != nil {
			return Page{}, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		if err := json.Unmarshal(violations, &e.Violations); err != nil {
			return Page{}, fmt.Errorf("entry %s violations: %w", e.ID, err)
		}
		e.UserID = deref(userID)
		e.Department = deref(department)
		e.RequestID = deref(requestID)
		logs = append(logs, e)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("iterating validation logs: %w", err)
	}

	return Page{
		Logs:       logs,
		Total:      total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(p.Limit))),
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Statistics aggregates entries created in [from, to). Nil bounds are open.
func (s *Store) Statistics(ctx context.Context, from, to *time.Time) (Summary, error) {
	where, args := buildWhere(ListParams{From: from, To: to})

	rows, err := s.db.Query(ctx,
		"SELECT security_level, count(*), COALESCE(sum(risk_score), 0) FROM validation_logs"+where+
			" GROUP BY security_level", args...)
	if err != nil {
		return Summary{}, fmt.Errorf("querying level totals: %w", err)
	}
	defer rows.Close()

	var sum Summary
	var scoreTotal int64
	for rows.Next() {
		var (
			code  string
			count int
			total int64
		)
		if err := rows.Scan(&code, &count, &total); err != nil {
			return Summary{}, fmt.Errorf("scanning level totals: %w", err)
		}
		level, err := sentinel.ParseLevel(code)
		if err != nil {
			continue
		}
		sum.add(level, count)
		scoreTotal += total
	}
	if err := rows.Err(); err != nil {
		return Summary{}, fmt.Errorf("iterating level totals: %w", err)
	}
	if sum.Total > 0 {
		sum.AverageRiskScore = math.Round(float64(scoreTotal)/float64(sum.Total)*10) / 10
	}

	sum.TopViolations, err = s.topViolations(ctx, where, args)
	if err != nil {
		return Summary{}, err
	}
	return sum, nil
}

func (sum *Summary) add(level sentinel.Level, n int) {
	sum.Total += n
	switch level {
	case sentinel.Safe:
		sum.Safe += n
	case sentinel.Warning:
		sum.Warning += n
	case sentinel.Danger:
		sum.Danger += n
	case sentinel.Blocked:
		sum.Blocked += n
	}
}

func (s *Store) topViolations(ctx context.Context, where string, args []any) ([]TypeCount, error) {
	rows, err := s.db.Query(ctx,
		"SELECT v->>'type' AS type, count(*) AS n FROM validation_logs CROSS JOIN LATERAL "+
			"jsonb_array_elements(violations) AS v"+where+
			" GROUP BY 1 ORDER BY n DESC, type LIMIT 10", args...)
	if err != nil {
		return nil, fmt.Errorf("querying top violations: %w", err)
	}
	defer rows.Close()

	top := []TypeCount{}
	for rows.Next() {
		var (
			code  string
			count int
		)
		if err := rows.Scan(&code, &count); err != nil {
			return nil, fmt.Errorf("scanning top violations: %w", err)
		}
		cat, err := sentinel.ParseCategory(code)
		if err != nil {
			continue
		}
		top = append(top, TypeCount{Type: cat, Count: count})
	}
	return top, rows.Err()
}

var _ Sink = (*Store)(nil)
