package propagation

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx" //make alias name the package to sqlx
)

func ConnectToDatabase(user string, pass string, host string, dbname string) (*sqlx.DB, error) {
	port := "3306"
	dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)
	db, err := sqlx.Connect("mysql", dbURI)
	return db, err
}

type GainEntry struct {
	Channel int     `db:"channel"`
	ToPE    float64 `db:"to_pe"`
}

// LoadGainModel reads the to_pe gain of every PMT valid for the run.
// Channels absent from the table are returned as dead.
func LoadGainModel(db *sqlx.DB, runNumber int, nChannels int, verbosity int) ([]float64, error) {
	query := "SELECT channel, to_pe FROM PmtGains WHERE MinRun <= %d and MaxRun >= %d ORDER BY channel"
	query = fmt.Sprintf(query, runNumber, runNumber)

	if verbosity > 0 {
		logger.Info(fmt.Sprintf("Reading PMT gain model for run %d from database", runNumber), "database")
	}
	if verbosity > 2 {
		logger.Info(fmt.Sprintf("Query: %s", query), "database")
	}

	rows, err := db.Queryx(query)
	if err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}
	defer rows.Close()

	entries := make([]GainEntry, 0, nChannels)
	for rows.Next() {
		result := GainEntry{}
		if err := rows.StructScan(&result); err != nil {
			return nil, fmt.Errorf("error scanning DB row: %w", err)
		}
		entries = append(entries, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading DB rows: %w", err)
	}
	return GainModelFromEntries(entries, nChannels)
}

func GainModelFromEntries(entries []GainEntry, nChannels int) ([]float64, error) {
	toPE := make([]float64, nChannels)
	for _, entry := range entries {
		if entry.Channel < 0 || entry.Channel >= nChannels {
			return nil, fmt.Errorf("gain model channel %d outside [0, %d)", entry.Channel, nChannels)
		}
		toPE[entry.Channel] = entry.ToPE
	}
	return toPE, nil
}

// ResolveGainModel returns the configured to_pe table when the database is
// disabled, and the table of the run otherwise.
func ResolveGainModel(config Configuration) ([]float64, error) {
	if config.NoDB {
		if len(config.ToPE) != config.NTpcPmts {
			return nil, fmt.Errorf("%w: to_pe has %d entries, expected %d", ErrLengthMismatch, len(config.ToPE), config.NTpcPmts)
		}
		return config.ToPE, nil
	}
	db, err := ConnectToDatabase(config.User, config.Passwd, config.Host, config.DBName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	defer db.Close()
	return LoadGainModel(db, config.RunNumber, config.NTpcPmts, config.Verbosity)
}
