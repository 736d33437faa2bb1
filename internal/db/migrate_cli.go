package db

import (
	"fmt"
	"io"
	"log"
)

// RunMigrateCommand handles `sensevis migrate <action>` against dbPath.
func RunMigrateCommand(w io.Writer, args []string, dbPath string) error {
	if len(args) < 1 {
		PrintMigrateHelp(w)
		return fmt.Errorf("missing migrate action")
	}
	action := args[0]
	if action == "help" {
		PrintMigrateHelp(w)
		return nil
	}

	// Open without migrating so status reflects what is on disk.
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	migrations := MigrationsFS()
	switch action {
	case "up":
		log.Printf("Running migrations...")
		if err := database.MigrateUp(migrations); err != nil {
			return err
		}
		version, dirty, _ := database.MigrateVersion(migrations)
		fmt.Fprintf(w, "Current version: %d (dirty: %v)\n", version, dirty)

	case "down":
		log.Printf("Rolling back one migration...")
		if err := database.MigrateDown(migrations); err != nil {
			return err
		}
		version, dirty, _ := database.MigrateVersion(migrations)
		fmt.Fprintf(w, "Current version: %d (dirty: %v)\n", version, dirty)

	case "status", "version":
		version, dirty, err := database.MigrateVersion(migrations)
		if err != nil {
			return fmt.Errorf("failed to get migration version: %w", err)
		}
		latest, err := LatestMigrationVersion(migrations)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Current version: %d\n", version)
		fmt.Fprintf(w, "Latest version:  %d\n", latest)
		fmt.Fprintf(w, "Dirty:           %v\n", dirty)
		if version < latest {
			fmt.Fprintf(w, "%d migration(s) pending\n", latest-version)
		}

	default:
		PrintMigrateHelp(w)
		return fmt.Errorf("unknown migrate action: %s", action)
	}
	return nil
}

// PrintMigrateHelp writes usage for the migrate subcommand.
func PrintMigrateHelp(w io.Writer) {
	fmt.Fprint(w, `Usage: sensevis migrate <action>

Actions:
  up        Apply all pending migrations
  down      Roll back the most recent migration
  status    Show current and latest schema versions
  version   Alias for status
  help      Show this message
`)
}
