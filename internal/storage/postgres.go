package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"flagcast/internal/platform"
	logx "flagcast/pkg/logx"
)

// gorm models, kept private to the driver. Conversions to the platform
// types happen at the boundary so callers never see gorm tags.

type settingRow struct {
	Key   string `gorm:"primaryKey"`
	Value string `gorm:"not null"`
}

func (settingRow) TableName() string { return "settings" }

type challengeRow struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"not null"`
	Category  string
	Type      string
	Value     int
	State     string `gorm:"not null;default:'hidden'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (challengeRow) TableName() string { return "challenges" }

type solveRow struct {
	ID          string `gorm:"primaryKey"`
	ChallengeID int64  `gorm:"index;uniqueIndex:uniq_solve_user"`
	UserName    string `gorm:"uniqueIndex:uniq_solve_user"`
	CreatedAt   time.Time
}

func (solveRow) TableName() string { return "solves" }

type deliveryRow struct {
	ID      string    `gorm:"primaryKey"`
	At      time.Time `gorm:"index"`
	Kind    string
	Target  string
	Outcome string
	Reason  string
	Excerpt string
}

func (deliveryRow) TableName() string { return "deliveries" }

type postgresStore struct {
	db  *gorm.DB
	log logx.Logger
}

func openPostgres(cfg Config, log logx.Logger) (Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&settingRow{}, &challengeRow{}, &solveRow{}, &deliveryRow{}); err != nil {
		return nil, err
	}
	log.Info("postgres store opened")
	return &postgresStore{db: db, log: log}, nil
}

func (s *postgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ---- challenges ----

func toChallenge(r challengeRow) platform.Challenge {
	return platform.Challenge{
		ID:        r.ID,
		Name:      r.Name,
		Category:  r.Category,
		Type:      r.Type,
		Value:     r.Value,
		State:     platform.State(r.State),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (s *postgresStore) CreateChallenge(ctx context.Context, ch *platform.Challenge) error {
	row := challengeRow{
		Name:      ch.Name,
		Category:  ch.Category,
		Type:      ch.Type,
		Value:     ch.Value,
		State:     string(ch.State),
		CreatedAt: ch.CreatedAt,
		UpdatedAt: ch.UpdatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	ch.ID = row.ID
	return nil
}

func (s *postgresStore) UpdateChallenge(ctx context.Context, ch *platform.Challenge) error {
	res := s.db.WithContext(ctx).Model(&challengeRow{}).Where("id = ?", ch.ID).Updates(map[string]any{
		"name":       ch.Name,
		"category":   ch.Category,
		"type":       ch.Type,
		"value":      ch.Value,
		"state":      string(ch.State),
		"updated_at": ch.UpdatedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return platform.ErrNotFound
	}
	return nil
}

func (s *postgresStore) GetChallenge(ctx context.Context, id int64) (platform.Challenge, error) {
	var row challengeRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return platform.Challenge{}, platform.ErrNotFound
	}
	if err != nil {
		return platform.Challenge{}, err
	}
	return toChallenge(row), nil
}

func (s *postgresStore) ListChallenges(ctx context.Context) ([]platform.Challenge, error) {
	var rows []challengeRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]platform.Challenge, 0, len(rows))
	for _, r := range rows {
		out = append(out, toChallenge(r))
	}
	return out, nil
}

// ---- solves ----

func (s *postgresStore) InsertSolve(ctx context.Context, sv *platform.Solve) (bool, error) {
	row := solveRow{
		ID:          sv.ID,
		ChallengeID: sv.ChallengeID,
		UserName:    sv.UserName,
		CreatedAt:   sv.CreatedAt,
	}
	// ON CONFLICT DO NOTHING on the (challenge, user) unique index.
	res := s.db.WithContext(ctx).Exec(
		`INSERT INTO solves (id, challenge_id, user_name, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (challenge_id, user_name) DO NOTHING`,
		row.ID, row.ChallengeID, row.UserName, row.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *postgresStore) CountSolves(ctx context.Context, challengeID int64) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&solveRow{}).Where("challenge_id = ?", challengeID).Count(&n).Error
	return int(n), err
}

// ---- settings ----

func (s *postgresStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var row settingRow
	err := s.db.WithContext(ctx).First(&row, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

func (s *postgresStore) SetSetting(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value,
	).Error
}

// ---- deliveries ----

func (s *postgresStore) AppendDelivery(ctx context.Context, d Delivery) error {
	if d.At.IsZero() {
		d.At = time.Now()
	}
	row := deliveryRow{
		ID:      d.ID,
		At:      d.At,
		Kind:    d.Kind,
		Target:  d.Target,
		Outcome: d.Outcome,
		Reason:  d.Reason,
		Excerpt: d.Excerpt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *postgresStore) ListDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []deliveryRow
	if err := s.db.WithContext(ctx).Order("at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Delivery, 0, len(rows))
	for _, r := range rows {
		out = append(out, Delivery{
			ID: r.ID, At: r.At, Kind: r.Kind, Target: r.Target,
			Outcome: r.Outcome, Reason: r.Reason, Excerpt: r.Excerpt,
		})
	}
	return out, nil
}

func (s *postgresStore) PruneDeliveries(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("at < ?", olderThan).Delete(&deliveryRow{})
	return res.RowsAffected, res.Error
}
