// Package catalog holds the curated property reference data and resolves
// raw upstream hotel identities to canonical properties.
package catalog

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"sigtrip_wrapper/internal/domain"
)

//go:embed data/catalog.yaml
var embedded []byte

// Match methods, in resolution order.
const (
	MethodProviderIDMap     = "provider_id_map"
	MethodNameCityMatch     = "name_city_match"
	MethodFallbackGenerated = "fallback_generated"

	Strategy = "provider_id_map_then_name_city_then_fallback"
)

type PropertyRecord struct {
	PropertyID          string                     `yaml:"property_id"`
	Name                string                     `yaml:"name"`
	Aliases             []string                   `yaml:"aliases"`
	City                string                     `yaml:"city"`
	CountryCode         string                     `yaml:"country_code"`
	Address             string                     `yaml:"address"`
	Description         string                     `yaml:"description"`
	Amenities           []string                   `yaml:"amenities"`
	Rating              *domain.Rating             `yaml:"rating"`
	BookingCapabilities domain.BookingCapabilities `yaml:"booking_capabilities"`
}

type Location struct {
	Key           string   `yaml:"key"`
	Hotels        []string `yaml:"hotels"`
	FallbackImage string   `yaml:"fallback_image"`
}

type document struct {
	Properties  []PropertyRecord  `yaml:"properties"`
	ProviderIDs map[string]string `yaml:"provider_ids"`
	Locations   []Location        `yaml:"locations"`
}

// Profile is the canonical view of a hotel handed to listing assembly.
type Profile struct {
	PropertyID          string
	Name                string
	LocationDetails     domain.LocationDetails
	Description         string
	Amenities           []string
	Rating              *domain.Rating
	BookingCapabilities domain.BookingCapabilities
}

// Match describes how a Profile was obtained. Confidence is informational.
type Match struct {
	Method     string  `json:"method"`
	Confidence float64 `json:"confidence"`
}

// Catalog is immutable after Load. Accessors return copies.
type Catalog struct {
	records     []PropertyRecord
	byID        map[string]int
	providerIDs map[string]string
	locations   []Location
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the catalog built from the embedded document.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Load(embedded)
	})
	return defaultCat, defaultErr
}

// Load parses a catalog document and checks its cross references.
func Load(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	c := &Catalog{
		records:     doc.Properties,
		byID:        make(map[string]int, len(doc.Properties)),
		providerIDs: doc.ProviderIDs,
		locations:   doc.Locations,
	}
	for i, r := range doc.Properties {
		if r.PropertyID == "" {
			return nil, fmt.Errorf("catalog: property %d has no property_id", i)
		}
		if _, dup := c.byID[r.PropertyID]; dup {
			return nil, fmt.Errorf("catalog: duplicate property %q", r.PropertyID)
		}
		c.byID[r.PropertyID] = i
	}
	for pid, propID := range doc.ProviderIDs {
		if _, ok := c.byID[propID]; !ok {
			return nil, fmt.Errorf("catalog: provider id %q maps to unknown property %q", pid, propID)
		}
	}
	for i := range c.locations {
		c.locations[i].Key = strings.ToLower(c.locations[i].Key)
	}
	return c, nil
}

func (c *Catalog) location(loc string) (Location, bool) {
	l := strings.ToLower(loc)
	for _, entry := range c.locations {
		if entry.Key != "" && strings.Contains(l, entry.Key) {
			return entry, true
		}
	}
	return Location{}, false
}

// HotelsFor lists upstream hotel names served for a free-text location.
func (c *Catalog) HotelsFor(loc string) []string {
	entry, ok := c.location(loc)
	if !ok {
		return nil
	}
	return append([]string(nil), entry.Hotels...)
}

func (c *Catalog) FallbackImage(loc string) (string, bool) {
	entry, ok := c.location(loc)
	if !ok || entry.FallbackImage == "" {
		return "", false
	}
	return entry.FallbackImage, true
}

// Resolve maps a raw upstream hotel to a canonical profile: provider id
// table first, then normalized name or alias plus city, then a synthesized
// identity derived from city and name.
func (c *Catalog) Resolve(providerID, name, city, countryHint string) (Profile, Match) {
	if propID, ok := c.providerIDs[providerID]; ok {
		return c.records[c.byID[propID]].profile(), Match{Method: MethodProviderIDMap, Confidence: 1.0}
	}

	targetName, targetCity := norm(name), norm(city)
	for _, r := range c.records {
		if norm(r.City) != targetCity {
			continue
		}
		if norm(r.Name) == targetName {
			return r.profile(), Match{Method: MethodNameCityMatch, Confidence: 0.75}
		}
		for _, a := range r.Aliases {
			if norm(a) == targetName {
				return r.profile(), Match{Method: MethodNameCityMatch, Confidence: 0.75}
			}
		}
	}

	return Profile{
		PropertyID: FallbackPropertyID(name, city),
		Name:       name,
		LocationDetails: domain.LocationDetails{
			Address:     "Unknown",
			City:        cases.Title(language.Und).String(city),
			CountryCode: strings.ToUpper(countryHint),
		},
		Amenities: []string{},
		BookingCapabilities: domain.BookingCapabilities{
			InstantConfirmation:  false,
			PayAtHotel:           true,
			RequiresPaymentToken: true,
		},
	}, Match{Method: MethodFallbackGenerated, Confidence: 0.2}
}

func (r PropertyRecord) profile() Profile {
	var rating *domain.Rating
	if r.Rating != nil {
		cp := *r.Rating
		rating = &cp
	}
	return Profile{
		PropertyID: r.PropertyID,
		Name:       r.Name,
		LocationDetails: domain.LocationDetails{
			Address:     r.Address,
			City:        r.City,
			CountryCode: r.CountryCode,
		},
		Description:         r.Description,
		Amenities:           append([]string{}, r.Amenities...),
		Rating:              rating,
		BookingCapabilities: r.BookingCapabilities,
	}
}

// FallbackPropertyID is the deterministic identity of an uncurated hotel.
func FallbackPropertyID(name, city string) string {
	return "prop_unmapped_" + slug(city) + "_" + slug(name)
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(s), "_"), "_")
}

func norm(s string) string {
	return strings.TrimSpace(nonAlnum.ReplaceAllString(strings.ToLower(s), " "))
}
