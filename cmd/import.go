package main

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/store"
)

// importFile is the YAML layout accepted by the import command.
type importFile struct {
	Organizations []importOrganization `yaml:"organizations"`
}

type importOrganization struct {
	model.Organization `yaml:",inline"`
	Targets            []importTarget `yaml:"targets"`
}

type importTarget struct {
	Name     string           `yaml:"name"`
	Type     model.TargetType `yaml:"type"`
	Priority model.Priority   `yaml:"priority"`
	Keywords []string         `yaml:"keywords"`
	Active   *bool            `yaml:"active"`
}

var importCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Load organizations and intelligence targets from YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrap(err, "open import file")
		}
		defer f.Close() //nolint:errcheck

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		orgs, targets, err := importOrganizations(ctx, st, f)
		if err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.Int("organizations", orgs),
			zap.Int("targets", targets),
			zap.String("file", args[0]),
		)
		return nil
	},
}

// importOrganizations validates the whole file before writing anything, then
// upserts each organization followed by its targets. Re-importing updates
// rows in place; accumulated target context is left untouched.
func importOrganizations(ctx context.Context, st store.Store, r io.Reader) (int, int, error) {
	var file importFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return 0, 0, eris.Wrap(err, "import: decode yaml")
	}
	if err := file.validate(); err != nil {
		return 0, 0, err
	}

	var targets int
	for i := range file.Organizations {
		in := &file.Organizations[i]
		org := in.Organization
		if err := st.UpsertOrganization(ctx, &org); err != nil {
			return i, targets, eris.Wrapf(err, "import: organization %s", org.ID)
		}
		for _, t := range in.Targets {
			target := model.IntelligenceTarget{
				OrganizationID:     org.ID,
				Name:               strings.TrimSpace(t.Name),
				TargetType:         t.Type,
				Priority:           t.Priority,
				MonitoringKeywords: t.Keywords,
				Active:             t.Active == nil || *t.Active,
			}
			if target.Priority == "" {
				target.Priority = model.PriorityMedium
			}
			if err := st.UpsertTarget(ctx, &target); err != nil {
				return i, targets, eris.Wrapf(err, "import: target %s/%s", org.ID, target.Name)
			}
			targets++
		}
	}
	return len(file.Organizations), targets, nil
}

func (f *importFile) validate() error {
	if len(f.Organizations) == 0 {
		return eris.New("import: no organizations in file")
	}
	for i, o := range f.Organizations {
		if strings.TrimSpace(o.ID) == "" || strings.TrimSpace(o.Name) == "" {
			return eris.Errorf("import: organization %d needs an id and a name", i+1)
		}
		for _, t := range o.Targets {
			if strings.TrimSpace(t.Name) == "" {
				return eris.Errorf("import: organization %s has a target without a name", o.ID)
			}
			if !t.Type.Valid() {
				return eris.Errorf("import: target %s has unknown type %q", t.Name, t.Type)
			}
			if t.Priority != "" && !t.Priority.Valid() {
				return eris.Errorf("import: target %s has unknown priority %q", t.Name, t.Priority)
			}
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(importCmd)
}
