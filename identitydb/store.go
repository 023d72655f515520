// identitydb persists the identity snapshot across process restarts so the
// anonymous id is generated once per install, not once per run.
package identitydb

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"strings"
	"time"

	"github.com/SpeechifyInc/analytics-go/analytics"
	pkgerrors "github.com/SpeechifyInc/analytics-go/pkg/errors"
	"github.com/SpeechifyInc/analytics-go/pkg/logger"
	"github.com/SpeechifyInc/analytics-go/pkg/value"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const defaultInstallKey = "default"

type identityRecord struct {
	InstallKey  string    `gorm:"primaryKey;column:install_key"`
	AnonymousID string    `gorm:"column:anonymous_id"`
	UserID      string    `gorm:"column:user_id"`
	Traits      []byte    `gorm:"column:traits"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (identityRecord) TableName() string {
	return "identity_records"
}

// Store is a sqlite-backed analytics.IdentityStorage. One row per install
// key; Save overwrites the row wholesale, matching the snapshot semantics
// of the identity state it persists.
type Store struct {
	conn       *gorm.DB
	installKey string
}

// Open opens (or creates) the sqlite database at path and migrates the
// identity table.
func Open(path, installKey string, logg *logger.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "identity db path is required")
	}
	if strings.TrimSpace(installKey) == "" {
		installKey = defaultInstallKey
	}

	gormLogger := gormlogger.New(
		log.New(io.Discard, "", log.LstdFlags),
		gormlogger.Config{LogLevel: gormlogger.Silent},
	)
	conn, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "opening identity db")
	}

	if err := conn.AutoMigrate(&identityRecord{}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "migrating identity db")
	}

	if logg != nil {
		logg.Info(context.Background(), "identity storage ready")
	}

	return &Store{conn: conn, installKey: installKey}, nil
}

// Load returns the persisted snapshot for this install, if any.
func (s *Store) Load() (analytics.IdentitySnapshot, bool, error) {
	var rec identityRecord
	err := s.conn.First(&rec, "install_key = ?", s.installKey).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return analytics.IdentitySnapshot{}, false, nil
		}
		return analytics.IdentitySnapshot{}, false, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "loading identity record")
	}

	traits := value.Null()
	if len(rec.Traits) > 0 {
		traits, err = value.Decode(rec.Traits)
		if err != nil {
			return analytics.IdentitySnapshot{}, false, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "decoding persisted traits")
		}
	}

	return analytics.IdentitySnapshot{
		AnonymousID: rec.AnonymousID,
		UserID:      rec.UserID,
		Traits:      traits,
	}, true, nil
}

// Save upserts the snapshot row for this install.
func (s *Store) Save(snap analytics.IdentitySnapshot) error {
	var traits []byte
	if !snap.Traits.IsNull() {
		encoded, err := json.Marshal(snap.Traits)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "encoding traits")
		}
		traits = encoded
	}

	rec := identityRecord{
		InstallKey:  s.installKey,
		AnonymousID: snap.AnonymousID,
		UserID:      snap.UserID,
		Traits:      traits,
		UpdatedAt:   time.Now().UTC(),
	}
	err := s.conn.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "saving identity record")
	}
	return nil
}

// Close releases the underlying sqlite connection.
func (s *Store) Close() error {
	sqlDB, err := s.conn.DB()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "accessing identity db handle")
	}
	return sqlDB.Close()
}
