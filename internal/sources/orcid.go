// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/orcid2taxid/internal/logging"
	"github.com/pdiddy/orcid2taxid/pkg/types"
)

// orcidAPIBase is the ORCID public API. Declared as a var so tests can
// substitute an httptest server.
var orcidAPIBase = "https://pub.orcid.org/v3.0"

const orcidMediaType = "application/vnd.orcid+json"

// ORCIDAdapter reads the researcher registry: the works a researcher has
// claimed, and their name and affiliation history.
type ORCIDAdapter struct {
	Client *http.Client
	Config types.HTTPConfig
}

// Name returns the adapter identifier.
func (a *ORCIDAdapter) Name() string { return "orcid" }

// Fetch returns the works listed on the researcher's registry record.
// Every record is marked Claimed.
func (a *ORCIDAdapter) Fetch(ctx context.Context, q Query) ([]types.PublicationRecord, error) {
	var works orcidWorks
	if err := a.get(ctx, q.ORCID, "works", &works); err != nil {
		return nil, err
	}

	max := q.limit(500, 10000)
	var records []types.PublicationRecord
	for _, g := range works.Group {
		if len(g.WorkSummary) == 0 {
			continue
		}
		// The first summary is the researcher's preferred version.
		ws := g.WorkSummary[0]
		r := types.PublicationRecord{
			Source:  a.Name(),
			Sources: []string{a.Name()},
			Title:   strings.TrimSpace(ws.Title.Title.Value),
			Date:    ws.PublicationDate.toTime(),
			Claimed: true,
		}
		if ws.JournalTitle != nil {
			r.Venue = ws.JournalTitle.Value
		}
		for _, ext := range append(g.ExternalIDs.ExternalID, ws.ExternalIDs.ExternalID...) {
			if ext.Relationship != "" && ext.Relationship != "self" {
				continue
			}
			if id, ok := orcidExternalID(ext.Type, ext.Value); ok {
				r.AddID(id)
			}
		}
		if ws.PutCode != 0 {
			r.AddID(types.Identifier{Scheme: types.SchemePutCode, Value: strconv.Itoa(ws.PutCode)})
		}
		if !q.inRange(r.Date) {
			continue
		}
		records = append(records, r)
		if len(records) >= max {
			break
		}
	}
	return records, nil
}

// FetchIdentity reads the researcher's name, other names, employments and
// educations. A researcher unknown to the registry yields ErrNotFound.
// Affiliation sections that fail to load are logged and left empty.
func (a *ORCIDAdapter) FetchIdentity(ctx context.Context, orcid string) (types.ResearcherIdentity, error) {
	id := types.ResearcherIdentity{ORCID: orcid}

	var person orcidPerson
	if err := a.get(ctx, orcid, "person", &person); err != nil {
		return id, err
	}
	if n := person.Name; n != nil {
		id.GivenNames = n.GivenNames.value()
		id.FamilyName = n.FamilyName.value()
		id.DisplayName = strings.TrimSpace(id.GivenNames + " " + id.FamilyName)
		if credit := n.CreditName.value(); credit != "" {
			if id.DisplayName == "" {
				id.DisplayName = credit
			} else {
				id.Variants = append(id.Variants, credit)
			}
		}
	}
	for _, o := range person.OtherNames.OtherName {
		if c := strings.TrimSpace(o.Content); c != "" {
			id.Variants = append(id.Variants, c)
		}
	}

	log := logging.FromContext(ctx)
	for _, section := range []struct {
		path string
		kind types.AffiliationKind
	}{
		{"employments", types.AffiliationEmployment},
		{"educations", types.AffiliationEducation},
	} {
		var affs orcidAffiliations
		if err := a.get(ctx, orcid, section.path, &affs); err != nil {
			if ctx.Err() != nil {
				return id, ctx.Err()
			}
			log.Warn().Err(err).Str("section", section.path).Msg("could not load affiliations")
			continue
		}
		for _, g := range affs.AffiliationGroup {
			for _, s := range g.Summaries {
				sum := s.EmploymentSummary
				if sum == nil {
					sum = s.EducationSummary
				}
				if sum == nil || sum.Organization.Name == "" {
					continue
				}
				id.Affiliations = append(id.Affiliations, types.Affiliation{
					Institution: sum.Organization.Name,
					Department:  sum.DepartmentName,
					Role:        sum.RoleTitle,
					Kind:        section.kind,
					Start:       sum.StartDate.toTime(),
					End:         sum.EndDate.toTime(),
				})
			}
		}
	}
	return id, nil
}

func (a *ORCIDAdapter) get(ctx context.Context, orcid, section string, v any) error {
	reqURL := fmt.Sprintf("%s/%s/%s", orcidAPIBase, orcid, section)
	header := http.Header{"Accept": {orcidMediaType}}
	return getJSON(ctx, a.Client, "ORCID", reqURL, header, a.Config, v)
}

// orcidExternalID maps a registry external-id type to an identifier scheme.
func orcidExternalID(kind, value string) (types.Identifier, bool) {
	value = strings.TrimSpace(value)
	switch strings.ToLower(kind) {
	case "doi":
		if doi := types.NormalizeDOI(value); doi != "" {
			return types.Identifier{Scheme: types.SchemeDOI, Value: doi}, true
		}
	case "pmid":
		return types.Identifier{Scheme: types.SchemePMID, Value: value}, value != ""
	case "pmc":
		return types.Identifier{Scheme: types.SchemePMCID, Value: strings.ToUpper(value)}, value != ""
	case "arxiv":
		return types.Identifier{Scheme: types.SchemeArxiv, Value: strings.TrimPrefix(strings.ToLower(value), "arxiv:")}, value != ""
	}
	return types.Identifier{}, false
}

// ORCID API JSON structures.
type orcidValue struct {
	Value string `json:"value"`
}

func (v *orcidValue) value() string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(v.Value)
}

type orcidDate struct {
	Year  *orcidValue `json:"year"`
	Month *orcidValue `json:"month"`
	Day   *orcidValue `json:"day"`
}

func (d *orcidDate) toTime() time.Time {
	if d == nil {
		return time.Time{}
	}
	y, _ := strconv.Atoi(d.Year.value())
	m, _ := strconv.Atoi(d.Month.value())
	day, _ := strconv.Atoi(d.Day.value())
	return dateFromParts(y, m, day)
}

type orcidExternalIDs struct {
	ExternalID []struct {
		Type         string `json:"external-id-type"`
		Value        string `json:"external-id-value"`
		Relationship string `json:"external-id-relationship"`
	} `json:"external-id"`
}

type orcidWorks struct {
	Group []struct {
		ExternalIDs orcidExternalIDs `json:"external-ids"`
		WorkSummary []struct {
			PutCode int `json:"put-code"`
			Title   struct {
				Title orcidValue `json:"title"`
			} `json:"title"`
			ExternalIDs     orcidExternalIDs `json:"external-ids"`
			PublicationDate *orcidDate       `json:"publication-date"`
			JournalTitle    *orcidValue      `json:"journal-title"`
			Type            string           `json:"type"`
		} `json:"work-summary"`
	} `json:"group"`
}

type orcidPerson struct {
	Name *struct {
		GivenNames *orcidValue `json:"given-names"`
		FamilyName *orcidValue `json:"family-name"`
		CreditName *orcidValue `json:"credit-name"`
	} `json:"name"`
	OtherNames struct {
		OtherName []struct {
			Content string `json:"content"`
		} `json:"other-name"`
	} `json:"other-names"`
}

type orcidAffiliationSummary struct {
	DepartmentName string     `json:"department-name"`
	RoleTitle      string     `json:"role-title"`
	StartDate      *orcidDate `json:"start-date"`
	EndDate        *orcidDate `json:"end-date"`
	Organization   struct {
		Name string `json:"name"`
	} `json:"organization"`
}

type orcidAffiliations struct {
	AffiliationGroup []struct {
		Summaries []struct {
			EmploymentSummary *orcidAffiliationSummary `json:"employment-summary"`
			EducationSummary  *orcidAffiliationSummary `json:"education-summary"`
		} `json:"summaries"`
	} `json:"affiliation-group"`
}
