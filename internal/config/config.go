// Package config loads the pipeline configuration: anchor phrases and
// similarity thresholds, reimbursable meal labels, the flat reimbursement
// rate, employee code prefixes, sheet titles and Drive folder names, and
// the batch/concurrency knobs for the scheduler.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Anchor is a single reference phrase with the similarity score it must
// reach for the phrase to count as present on the receipt.
type Anchor struct {
	Phrase   string  `mapstructure:"phrase"`
	MinScore float64 `mapstructure:"min_score"`
}

// MealRule classifies a receipt as one meal label when every anchor in the
// rule meets its score. Rules are evaluated in order; the first match wins.
type MealRule struct {
	Label   string   `mapstructure:"label"`
	Anchors []Anchor `mapstructure:"anchors"`
}

// CompanyRule identifies the issuing company from a primary and secondary
// anchor phrase cascade. A secondary hit only counts when the primary
// score still clears the floor.
type CompanyRule struct {
	Name         string  `mapstructure:"name"`
	Primary      Anchor  `mapstructure:"primary"`
	Secondary    Anchor  `mapstructure:"secondary"`
	PrimaryFloor float64 `mapstructure:"primary_floor"`
}

// Extraction holds the FieldExtractor configuration.
type Extraction struct {
	CodePrefixes []string      `mapstructure:"code_prefixes"`
	MealRules    []MealRule    `mapstructure:"meal_rules"`
	Company      CompanyRule   `mapstructure:"company"`
	MaxImageEdge int           `mapstructure:"max_image_edge"`
	OCRTimeout   time.Duration `mapstructure:"ocr_timeout"`
}

// Scheduler holds the batch scheduler configuration.
type Scheduler struct {
	BatchSize   int           `mapstructure:"batch_size"`
	Workers     int           `mapstructure:"workers"`
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
}

// Reconcile holds the reconciler configuration.
type Reconcile struct {
	EligibleMeals       []string        `mapstructure:"eligible_meals"`
	ReimbursementRate   decimal.Decimal `mapstructure:"-"`
	RateValue           string          `mapstructure:"reimbursement_rate"`
	SimilarityThreshold float64         `mapstructure:"similarity_threshold"`
	MaxAmountDigits     int             `mapstructure:"max_amount_digits"`
	RepairPrefixes      []string        `mapstructure:"repair_prefixes"`
}

// Sheets names the spreadsheet and worksheets used as roster source and
// ledger sink.
type Sheets struct {
	SpreadsheetID string `mapstructure:"spreadsheet_id"`
	RosterSheet   string `mapstructure:"roster_sheet"`
	ArchiveSheet  string `mapstructure:"archive_sheet"`
}

// Drive names the Drive folder hierarchy the receipts are uploaded to.
type Drive struct {
	RootFolderName string `mapstructure:"root_folder_name"`
}

// Config is the full pipeline configuration.
type Config struct {
	Extraction Extraction `mapstructure:"extraction"`
	Scheduler  Scheduler  `mapstructure:"scheduler"`
	Reconcile  Reconcile  `mapstructure:"reconcile"`
	Sheets     Sheets     `mapstructure:"sheets"`
	Drive      Drive      `mapstructure:"drive"`
}

// Default returns the configuration matching the production receipt flow.
func Default() *Config {
	return &Config{
		Extraction: Extraction{
			CodePrefixes: []string{"TGLP", "TGZM", "GZM", "GLP", "TGM", "TGP"},
			MealRules: []MealRule{
				{
					Label: "Special Packed M",
					Anchors: []Anchor{
						{Phrase: "Special", MinScore: 0.90},
						{Phrase: "Packed", MinScore: 0.90},
						{Phrase: "M", MinScore: 0.80},
					},
				},
				{
					Label: "Special Veg Thali",
					Anchors: []Anchor{
						{Phrase: "Special", MinScore: 0.90},
						{Phrase: "Veg", MinScore: 0.90},
						{Phrase: "Thali", MinScore: 0.80},
					},
				},
				{
					Label: "Special Non Veg Thali",
					Anchors: []Anchor{
						{Phrase: "Special", MinScore: 0.90},
						{Phrase: "Non veg", MinScore: 0.85},
						{Phrase: "Thali", MinScore: 0.80},
					},
				},
			},
			Company: CompanyRule{
				Name:         "Grazitti Intractive",
				Primary:      Anchor{Phrase: "grazitti", MinScore: 0.90},
				Secondary:    Anchor{Phrase: "intractive", MinScore: 0.95},
				PrimaryFloor: 0.80,
			},
			MaxImageEdge: 1200,
			OCRTimeout:   30 * time.Second,
		},
		Scheduler: Scheduler{
			BatchSize:   20,
			Workers:     4,
			TaskTimeout: 30 * time.Second,
		},
		Reconcile: Reconcile{
			EligibleMeals:       []string{"Special Packed M", "Special Veg Thali", "Special Non Veg Thali"},
			ReimbursementRate:   decimal.NewFromInt(130),
			SimilarityThreshold: 0.95,
			MaxAmountDigits:     2,
			RepairPrefixes:      []string{"TGLP", "TGZM", "GZM", "GLP"},
		},
		Sheets: Sheets{
			RosterSheet:  "Employee Data",
			ArchiveSheet: "Archive",
		},
		Drive: Drive{
			RootFolderName: "Lunch Receipts",
		},
	}
}

// Load reads a YAML configuration file and overlays it on the defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Reconcile.RateValue != "" {
		rate, err := decimal.NewFromString(cfg.Reconcile.RateValue)
		if err != nil {
			return nil, fmt.Errorf("parsing reimbursement rate %q: %w", cfg.Reconcile.RateValue, err)
		}
		cfg.Reconcile.ReimbursementRate = rate
	}

	return cfg, nil
}
