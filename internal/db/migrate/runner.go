// Package migrate applies the embedded SQL migrations with golang-migrate.
package migrate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/ivankudzin/phoneauth/internal/db"
)

const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// ErrNoChange is returned when the schema is already at the target version.
var ErrNoChange = migrate.ErrNoChange

func Run(dsn, direction string) error {
	if strings.TrimSpace(dsn) == "" {
		return errors.New("postgres dsn is required")
	}
	if direction != DirectionUp && direction != DirectionDown {
		return fmt.Errorf("direction must be %s or %s, got %q", DirectionUp, DirectionDown, direction)
	}

	source, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch direction {
	case DirectionUp:
		err = m.Up()
	case DirectionDown:
		err = m.Down()
	}
	if err != nil {
		return err
	}

	return nil
}
