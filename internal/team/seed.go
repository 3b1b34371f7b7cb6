package team

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/hitoshi/springboard/internal/model"
	"gopkg.in/yaml.v3"
)

// SeedFile はチーム参照データファイルの内容。
//
//	teams:
//	  - name: alpha
//	    emails: [a@example.com, b@example.com]
//	members: [a@example.com, b@example.com]
type SeedFile struct {
	Teams   []model.Team `yaml:"teams"`
	Members []string     `yaml:"members"`
}

// ParseSeed はYAMLからチーム参照データを読み込み、内容を検証する。
func ParseSeed(r io.Reader) (*SeedFile, error) {
	var f SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &SeedFile{}, nil
		}
		return nil, fmt.Errorf("failed to parse team file: %w", err)
	}

	names := make(map[string]bool, len(f.Teams))
	for i, t := range f.Teams {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, fmt.Errorf("team #%d has no name", i+1)
		}
		if names[name] {
			return nil, fmt.Errorf("duplicate team name: %s", name)
		}
		names[name] = true
		f.Teams[i].Name = name
	}
	return &f, nil
}

// LoadSeedFile はファイルパスからチーム参照データを読み込む。
func LoadSeedFile(path string) (*SeedFile, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open team file: %w", err)
	}
	defer fp.Close()
	return ParseSeed(fp)
}

// Overlaps は複数のチームに所属しているメールアドレスとそのチーム名を返す。
func (f *SeedFile) Overlaps() map[string][]string {
	byEmail := make(map[string][]string)
	for _, t := range f.Teams {
		seen := make(map[string]bool)
		for _, e := range t.Emails {
			key := strings.ToLower(strings.TrimSpace(e))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			byEmail[key] = append(byEmail[key], t.Name)
		}
	}

	overlaps := make(map[string][]string)
	for email, teams := range byEmail {
		if len(teams) > 1 {
			sort.Strings(teams)
			overlaps[email] = teams
		}
	}
	return overlaps
}

// TeamWriter はチーム参照データの書き込みに必要なインターフェース。
type TeamWriter interface {
	ReplaceAll(ctx context.Context, teams []model.Team) error
}

// MemberWriter は利用許可メンバーの書き込みに必要なインターフェース。
type MemberWriter interface {
	ReplaceAll(ctx context.Context, emails []string) error
}

// Seeder はチーム参照データをデータベースに投入する。
type Seeder struct {
	teams   TeamWriter
	members MemberWriter
	logger  *slog.Logger
}

// NewSeeder はSeederを生成する。
func NewSeeder(teams TeamWriter, members MemberWriter, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{teams: teams, members: members, logger: logger}
}

// Seed はチームと利用許可メンバーを全件入れ替える。
// 複数チームへの所属は警告として記録するが、投入は中止しない。
func (s *Seeder) Seed(ctx context.Context, f *SeedFile) error {
	for email, teams := range f.Overlaps() {
		s.logger.Warn("複数のチームに所属するメンバーがいます",
			slog.String("email", email),
			slog.Any("teams", teams),
			slog.String("resolved_team", teams[0]),
		)
	}

	if err := s.teams.ReplaceAll(ctx, f.Teams); err != nil {
		return fmt.Errorf("failed to seed teams: %w", err)
	}
	if err := s.members.ReplaceAll(ctx, f.Members); err != nil {
		return fmt.Errorf("failed to seed members: %w", err)
	}

	s.logger.Info("チーム参照データを投入しました",
		slog.Int("teams", len(f.Teams)),
		slog.Int("members", len(f.Members)),
	)
	return nil
}
