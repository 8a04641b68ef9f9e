package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kmuchiri/pricewatch/models"
)

// DefaultRetailers returns the built-in retailer table. New retailers are
// added by data (see LoadRetailers), not by new parsing code: unknown parser
// tags fall back to the generic strategy.
func DefaultRetailers() []models.RetailerConfig {
	return []models.RetailerConfig{
		{Name: "Jumia", SearchURL: "https://www.jumia.co.ke/catalog/?q={q}", Parser: "jumia"},
		{Name: "Carrefour", SearchURL: "https://www.carrefour.ke/search?text={q}", Parser: "carrefour"},
		{Name: "Naivas", SearchURL: "https://naivas.online/search?search={q}", Parser: "generic"},
		{Name: "Kilimall", SearchURL: "https://www.kilimall.co.ke/search?q={q}", Parser: "generic"},
		{Name: "CrownPaints", SearchURL: "https://www.crownpaints.co.ke/?s={q}", Parser: "generic"},
		{Name: "Ebuild", SearchURL: "https://www.ebuild.ke/?s={q}", Parser: "generic"},
		{Name: "BuildersHome", SearchURL: "https://thebuildershome.co.ke/?s={q}", Parser: "generic"},
		{Name: "ParklandsHardware", SearchURL: "https://parklands-hardware.co.ke/?s={q}", Parser: "generic"},
		{Name: "NaneHardware", SearchURL: "https://nanehomes.com/?s={q}", Parser: "generic"},
		{Name: "FastlaneHardware", SearchURL: "https://fastlanehardware.co.ke/?s={q}", Parser: "generic"},
	}
}

// LoadRetailers reads a yaml retailer list from path. Each entry needs a
// name and a search_url with exactly one {q} substitution point.
func LoadRetailers(path string) ([]models.RetailerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read retailers file: %w", err)
	}

	var retailers []models.RetailerConfig
	if err := yaml.Unmarshal(data, &retailers); err != nil {
		return nil, fmt.Errorf("parse retailers file: %w", err)
	}
	if err := ValidateRetailers(retailers); err != nil {
		return nil, err
	}
	return retailers, nil
}

// ValidateRetailers checks every retailer entry is usable.
func ValidateRetailers(retailers []models.RetailerConfig) error {
	if len(retailers) == 0 {
		return fmt.Errorf("retailer list is empty")
	}
	for i, r := range retailers {
		if r.Name == "" {
			return fmt.Errorf("retailer %d: name cannot be empty", i)
		}
		if strings.Count(r.SearchURL, "{q}") != 1 {
			return fmt.Errorf("retailer %s: search_url must contain exactly one {q}", r.Name)
		}
	}
	return nil
}
