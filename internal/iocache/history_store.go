package iocache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/kernscore/internal/contract"
	"github.com/huangsam/kernscore/schema"
)

// Table names for run history.
const (
	runsTable         = "kernscore_runs"
	commitScoresTable = "kernscore_commit_scores"
)

// sqliteTimeLayout is fixed width so stored times sort lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// HistoryStoreImpl implements the HistoryStore interface.
type HistoryStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.HistoryStore = &HistoryStoreImpl{} // Compile-time check

// NewHistoryStore creates a new HistoryStore with the specified backend.
func NewHistoryStore(backend schema.DatabaseBackend, connStr string) (contract.HistoryStore, error) {
	if backend == schema.NoneBackend {
		return &HistoryStoreImpl{backend: backend}, nil
	}

	db, err := openDatabase(backend, connStr, contract.GetHistoryDBFilePath())
	if err != nil {
		return nil, err
	}

	if err := createHistoryTables(db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history tables: %w", err)
	}

	return &HistoryStoreImpl{db: db, backend: backend}, nil
}

// createHistoryTables creates the run history tables.
func createHistoryTables(db *sql.DB, backend schema.DatabaseBackend) error {
	tables := []struct {
		name  string
		query string
	}{
		{runsTable, getCreateRunsQuery(backend)},
		{commitScoresTable, getCreateCommitScoresQuery(backend)},
	}

	for _, table := range tables {
		if _, err := db.Exec(table.query); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.name, err)
		}
	}
	return nil
}

// getCreateRunsQuery returns the CREATE TABLE query for kernscore_runs.
func getCreateRunsQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(runsTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id VARCHAR(36) PRIMARY KEY,
				mode VARCHAR(32) NOT NULL,
				version_range VARCHAR(255) NOT NULL,
				company_filter VARCHAR(255) NOT NULL,
				start_time DATETIME(6) NOT NULL,
				end_time DATETIME(6),
				run_duration_ms BIGINT,
				total_commits INT NOT NULL DEFAULT 0,
				failed_commits INT NOT NULL DEFAULT 0,
				config_params TEXT
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id TEXT PRIMARY KEY,
				mode TEXT NOT NULL,
				version_range TEXT NOT NULL,
				company_filter TEXT NOT NULL,
				start_time TIMESTAMPTZ NOT NULL,
				end_time TIMESTAMPTZ,
				run_duration_ms BIGINT,
				total_commits INT NOT NULL DEFAULT 0,
				failed_commits INT NOT NULL DEFAULT 0,
				config_params TEXT
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id TEXT PRIMARY KEY,
				mode TEXT NOT NULL,
				version_range TEXT NOT NULL,
				company_filter TEXT NOT NULL,
				start_time TEXT NOT NULL,
				end_time TEXT,
				run_duration_ms INTEGER,
				total_commits INTEGER NOT NULL DEFAULT 0,
				failed_commits INTEGER NOT NULL DEFAULT 0,
				config_params TEXT
			);
		`, quotedTableName)
	}
}

// getCreateCommitScoresQuery returns the CREATE TABLE query for kernscore_commit_scores.
func getCreateCommitScoresQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(commitScoresTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id VARCHAR(36) NOT NULL,
				commit_hash VARCHAR(64) NOT NULL,
				short_hash VARCHAR(16) NOT NULL,
				commit_date DATETIME(6) NOT NULL,
				author_company VARCHAR(100) NOT NULL,
				primary_category VARCHAR(32) NOT NULL,
				subsystem_tier INT NOT NULL,
				score_total INT NOT NULL,
				score_technical INT NOT NULL,
				score_impact INT NOT NULL,
				score_quality INT NOT NULL,
				score_community INT NOT NULL,
				error_kind VARCHAR(32),
				PRIMARY KEY (run_id, commit_hash)
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id TEXT NOT NULL,
				commit_hash TEXT NOT NULL,
				short_hash TEXT NOT NULL,
				commit_date TIMESTAMPTZ NOT NULL,
				author_company TEXT NOT NULL,
				primary_category TEXT NOT NULL,
				subsystem_tier INT NOT NULL,
				score_total INT NOT NULL,
				score_technical INT NOT NULL,
				score_impact INT NOT NULL,
				score_quality INT NOT NULL,
				score_community INT NOT NULL,
				error_kind TEXT,
				PRIMARY KEY (run_id, commit_hash)
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id TEXT NOT NULL,
				commit_hash TEXT NOT NULL,
				short_hash TEXT NOT NULL,
				commit_date TEXT NOT NULL,
				author_company TEXT NOT NULL,
				primary_category TEXT NOT NULL,
				subsystem_tier INTEGER NOT NULL,
				score_total INTEGER NOT NULL,
				score_technical INTEGER NOT NULL,
				score_impact INTEGER NOT NULL,
				score_quality INTEGER NOT NULL,
				score_community INTEGER NOT NULL,
				error_kind TEXT,
				PRIMARY KEY (run_id, commit_hash)
			);
		`, quotedTableName)
	}
}

// BeginRun creates a new run and returns its unique ID.
func (hs *HistoryStoreImpl) BeginRun(startTime time.Time, mode schema.RunMode, versionRange, companyFilter string, configParams map[string]any) (string, error) {
	if hs.db == nil {
		return "", nil
	}

	configJSON, err := json.Marshal(configParams)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config params: %w", err)
	}

	runID := uuid.NewString()
	query := fmt.Sprintf(`INSERT INTO %s (run_id, mode, version_range, company_filter, start_time, config_params) VALUES (%s)`,
		quoteTableName(runsTable, hs.backend), placeholderList(hs.backend, 6))
	if _, err := hs.db.Exec(query, runID, string(mode), versionRange, companyFilter, hs.formatTime(startTime), string(configJSON)); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return runID, nil
}

// EndRun updates the run with completion data.
func (hs *HistoryStoreImpl) EndRun(runID string, endTime time.Time, totalCommits, failedCommits int) error {
	if hs.db == nil {
		return nil
	}

	quotedTableName := quoteTableName(runsTable, hs.backend)
	query := fmt.Sprintf(`SELECT start_time FROM %s WHERE run_id = %s`, quotedTableName, placeholder(hs.backend, 1))
	startTime, err := hs.scanTime(hs.db.QueryRow(query, runID))
	if err != nil {
		return fmt.Errorf("failed to get start time for run %s: %w", runID, err)
	}
	durationMs := endTime.Sub(startTime).Milliseconds()

	query = fmt.Sprintf(`UPDATE %s SET end_time = %s, run_duration_ms = %s, total_commits = %s, failed_commits = %s WHERE run_id = %s`,
		quotedTableName,
		placeholder(hs.backend, 1), placeholder(hs.backend, 2), placeholder(hs.backend, 3),
		placeholder(hs.backend, 4), placeholder(hs.backend, 5))
	if _, err := hs.db.Exec(query, hs.formatTime(endTime), durationMs, totalCommits, failedCommits, runID); err != nil {
		return fmt.Errorf("failed to update run %s: %w", runID, err)
	}
	return nil
}

// RecordCommit stores the score columns of one commit. Recording the same
// commit twice in a run keeps the latest scores.
func (hs *HistoryStoreImpl) RecordCommit(runID string, commit schema.ScoredCommit) error {
	if hs.db == nil {
		return nil
	}

	var errorKind any
	if commit.ErrorKind != schema.NoError {
		errorKind = string(commit.ErrorKind)
	}

	quotedTableName := quoteTableName(commitScoresTable, hs.backend)
	columns := `run_id, commit_hash, short_hash, commit_date, author_company, primary_category, subsystem_tier,
		score_total, score_technical, score_impact, score_quality, score_community, error_kind`
	values := placeholderList(hs.backend, 13)

	var query string
	switch hs.backend {
	case schema.MySQLBackend:
		query = fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) AS new
			ON DUPLICATE KEY UPDATE primary_category = new.primary_category, subsystem_tier = new.subsystem_tier,
			score_total = new.score_total, score_technical = new.score_technical, score_impact = new.score_impact,
			score_quality = new.score_quality, score_community = new.score_community, error_kind = new.error_kind`,
			quotedTableName, columns, values)
	case schema.PostgreSQLBackend:
		query = fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)
			ON CONFLICT (run_id, commit_hash) DO UPDATE SET primary_category = EXCLUDED.primary_category,
			subsystem_tier = EXCLUDED.subsystem_tier, score_total = EXCLUDED.score_total,
			score_technical = EXCLUDED.score_technical, score_impact = EXCLUDED.score_impact,
			score_quality = EXCLUDED.score_quality, score_community = EXCLUDED.score_community,
			error_kind = EXCLUDED.error_kind`,
			quotedTableName, columns, values)
	default: // SQLite
		query = fmt.Sprintf(`INSERT OR REPLACE INTO %s (%s) VALUES (%s)`, quotedTableName, columns, values)
	}

	_, err := hs.db.Exec(query,
		runID, commit.CommitHash, commit.ShortHash, hs.formatTime(commit.CommitDate),
		commit.AuthorCompany, commit.PrimaryCategory, commit.SubsystemTier,
		commit.ScoreTotal, commit.ScoreTechnical, commit.ScoreImpact, commit.ScoreQuality, commit.ScoreCommunity,
		errorKind,
	)
	if err != nil {
		return fmt.Errorf("failed to record commit %s: %w", commit.ShortHash, err)
	}
	return nil
}

// Close closes the underlying connection.
func (hs *HistoryStoreImpl) Close() error {
	if hs.db != nil {
		return hs.db.Close()
	}
	return nil
}

// GetStatus returns status information about the history store.
func (hs *HistoryStoreImpl) GetStatus() (schema.HistoryStatus, error) {
	status := schema.HistoryStatus{
		Backend:    string(hs.backend),
		Connected:  hs.db != nil,
		TableSizes: make(map[string]int64),
	}
	if hs.db == nil {
		return status, nil
	}

	quotedRuns := quoteTableName(runsTable, hs.backend)
	row := hs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quotedRuns))
	if err := row.Scan(&status.TotalRuns); err != nil {
		return status, fmt.Errorf("failed to get total runs: %w", err)
	}

	if status.TotalRuns > 0 {
		row = hs.db.QueryRow(fmt.Sprintf("SELECT run_id, start_time FROM %s ORDER BY start_time DESC LIMIT 1", quotedRuns))
		lastRunTime, err := hs.scanTime(row, &status.LastRunID)
		if err != nil {
			return status, fmt.Errorf("failed to get last run info: %w", err)
		}
		status.LastRunTime = lastRunTime

		row = hs.db.QueryRow(fmt.Sprintf("SELECT start_time FROM %s ORDER BY start_time ASC LIMIT 1", quotedRuns))
		if status.OldestRunTime, err = hs.scanTime(row); err != nil {
			return status, fmt.Errorf("failed to get oldest run time: %w", err)
		}
	}

	for _, table := range []string{runsTable, commitScoresTable} {
		var count int64
		row = hs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(table, hs.backend)))
		if err := row.Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	status.TotalCommitScores = int(status.TableSizes[commitScoresTable])

	return status, nil
}

// GetAllRuns retrieves all runs ordered by start time.
func (hs *HistoryStoreImpl) GetAllRuns() ([]schema.RunRecord, error) {
	if hs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, mode, version_range, company_filter, start_time, end_time,
		run_duration_ms, total_commits, failed_commits, config_params FROM %s ORDER BY start_time, run_id`,
		quoteTableName(runsTable, hs.backend))
	rows, err := hs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.RunRecord
	for rows.Next() {
		var record schema.RunRecord
		var start, end any
		if err := rows.Scan(&record.RunID, &record.Mode, &record.VersionRange, &record.CompanyFilter,
			&start, &end, &record.RunDurationMs, &record.TotalCommits, &record.FailedCommits, &record.ConfigParams); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if record.StartTime, err = parseTimeValue(start); err != nil {
			return nil, fmt.Errorf("failed to parse start time for run %s: %w", record.RunID, err)
		}
		if end != nil {
			endTime, err := parseTimeValue(end)
			if err != nil {
				return nil, fmt.Errorf("failed to parse end time for run %s: %w", record.RunID, err)
			}
			record.EndTime = &endTime
		}
		results = append(results, record)
	}
	return results, rows.Err()
}

// GetAllCommitScores retrieves all recorded commit scores.
func (hs *HistoryStoreImpl) GetAllCommitScores() ([]schema.CommitScoreRecord, error) {
	if hs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, commit_hash, short_hash, commit_date, author_company, primary_category,
		subsystem_tier, score_total, score_technical, score_impact, score_quality, score_community, error_kind
		FROM %s ORDER BY run_id, commit_date, commit_hash`, quoteTableName(commitScoresTable, hs.backend))
	rows, err := hs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query commit scores: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.CommitScoreRecord
	for rows.Next() {
		var record schema.CommitScoreRecord
		var commitDate any
		if err := rows.Scan(&record.RunID, &record.CommitHash, &record.ShortHash, &commitDate,
			&record.AuthorCompany, &record.PrimaryCategory, &record.SubsystemTier,
			&record.ScoreTotal, &record.ScoreTechnical, &record.ScoreImpact, &record.ScoreQuality, &record.ScoreCommunity,
			&record.ErrorKind); err != nil {
			return nil, fmt.Errorf("failed to scan commit score: %w", err)
		}
		if record.CommitDate, err = parseTimeValue(commitDate); err != nil {
			return nil, fmt.Errorf("failed to parse commit date for %s: %w", record.ShortHash, err)
		}
		results = append(results, record)
	}
	return results, rows.Err()
}

// formatTime converts a time into the value the backend stores.
func (hs *HistoryStoreImpl) formatTime(t time.Time) any {
	if hs.backend == schema.SQLiteBackend {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t
}

// scanTime scans leading destinations followed by a trailing time column.
func (hs *HistoryStoreImpl) scanTime(row *sql.Row, dest ...any) (time.Time, error) {
	var raw any
	if err := row.Scan(append(dest, &raw)...); err != nil {
		return time.Time{}, err
	}
	return parseTimeValue(raw)
}

// parseTimeValue accepts native time values and the text forms drivers return.
func parseTimeValue(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return parseTimeString(t)
	case []byte:
		return parseTimeString(string(t))
	default:
		return time.Time{}, fmt.Errorf("unexpected time value %T", v)
	}
}

func parseTimeString(s string) (time.Time, error) {
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
