package ctl

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Project management commands",
}

var projectAddCmd = &cobra.Command{
	Use:   "add [org-slug] [project-name]",
	Short: "Create a project with a fresh DSN key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		orgSlug, name := args[0], args[1]
		slug := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
		dsnKey := strings.ReplaceAll(uuid.New().String(), "-", "")

		pool, err := pgxpool.New(cmd.Context(), cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()

		var projectID int64
		err = pool.QueryRow(cmd.Context(), `
			INSERT INTO projects (organization_id, name, slug, dsn_key)
			SELECT o.id, $2, $3, $4 FROM organizations o WHERE o.slug = $1
			RETURNING id
		`, orgSlug, name, slug, dsnKey).Scan(&projectID)
		if err != nil {
			return fmt.Errorf("create project: %w", err)
		}

		fmt.Printf("Project:  %d (%s)\n", projectID, slug)
		fmt.Printf("DSN key:  %s\n", dsnKey)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := pgxpool.New(cmd.Context(), cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()

		rows, err := pool.Query(cmd.Context(), `
			SELECT p.id, o.slug, p.slug, p.dsn_key, p.is_accepting_events
			FROM projects p JOIN organizations o ON o.id = p.organization_id
			ORDER BY p.id
		`)
		if err != nil {
			return fmt.Errorf("list projects: %w", err)
		}
		defer rows.Close()

		fmt.Printf("%-8s %-20s %-20s %-34s %s\n", "ID", "ORG", "PROJECT", "DSN KEY", "STATUS")
		for rows.Next() {
			var (
				id        int64
				org, slug string
				key       string
				accepting bool
			)
			if err := rows.Scan(&id, &org, &slug, &key, &accepting); err != nil {
				return err
			}
			status := "active"
			if !accepting {
				status = "paused"
			}
			fmt.Printf("%-8d %-20s %-20s %-34s %s\n", id, org, slug, key, status)
		}
		return rows.Err()
	},
}

func init() {
	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectListCmd)
}
