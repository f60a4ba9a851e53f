package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arborhq/lineage/common/apperr"
	"github.com/arborhq/lineage/common/gedcom"
	"github.com/arborhq/lineage/common/logger"
	"github.com/arborhq/lineage/common/models"
)

// ImportService runs the two-pass GEDCOM import: all individuals first so
// every cross-reference pointer can resolve, then family records into
// relationship edges
type ImportService struct {
	persons *PersonService
	graph   *GraphService
	trees   TreeStore
	log     *logger.Logger
}

// NewImportService creates a new import service
func NewImportService(persons *PersonService, graph *GraphService, trees TreeStore, log *logger.Logger) *ImportService {
	return &ImportService{persons: persons, graph: graph, trees: trees, log: log}
}

// ImportResult summarizes what an import produced. Skipped counts
// individual records or family links that could not be applied.
type ImportResult struct {
	IndividualsImported  int `json:"individuals_imported"`
	FamiliesProcessed    int `json:"families_processed"`
	RelationshipsCreated int `json:"relationships_created"`
	RecordsSkipped       int `json:"records_skipped"`
}

// Import parses a GEDCOM stream and loads it into the given tree. A bad
// record is logged and skipped, it never aborts the rest of the file.
func (s *ImportService) Import(ctx context.Context, userID string, treeID uuid.UUID, r io.Reader) (*ImportResult, error) {
	tree, err := s.trees.GetByID(ctx, treeID)
	if err != nil {
		return nil, err
	}
	if !tree.CanEdit(userID) {
		return nil, apperr.Forbidden("importing requires the editor role")
	}

	records, err := gedcom.Parse(r)
	if err != nil {
		return nil, apperr.Validation("unreadable GEDCOM input", map[string]string{"error": err.Error()})
	}

	result := &ImportResult{}
	pointers := map[string]uuid.UUID{}

	// Pass 1: individuals
	for _, rec := range records {
		if rec.Tag != "INDI" {
			continue
		}
		person, err := s.importIndividual(ctx, userID, treeID, rec)
		if err != nil {
			s.log.Warn("skipping individual record", "error", apperr.PartialImport(rec.XRef, err))
			result.RecordsSkipped++
			continue
		}
		if rec.XRef != "" {
			pointers[strings.Trim(rec.XRef, "@")] = person.ID
		}
		result.IndividualsImported++
	}

	// Pass 2: families
	for _, rec := range records {
		if rec.Tag != "FAM" {
			continue
		}
		result.FamiliesProcessed++
		s.importFamily(ctx, userID, rec, pointers, result)
	}

	s.log.Info("gedcom import finished",
		"tree_id", treeID,
		"individuals", result.IndividualsImported,
		"families", result.FamiliesProcessed,
		"relationships", result.RelationshipsCreated,
		"skipped", result.RecordsSkipped)

	return result, nil
}

func (s *ImportService) importIndividual(ctx context.Context, userID string, treeID uuid.UUID, rec *gedcom.Node) (*models.Person, error) {
	req := &CreatePersonRequest{Gender: models.GenderUnknown}

	req.FirstName, req.LastName = splitGedcomName(rec.ChildValue("NAME"))

	switch rec.ChildValue("SEX") {
	case "M":
		req.Gender = models.GenderMale
	case "F":
		req.Gender = models.GenderFemale
	}

	if birth := rec.First("BIRT"); birth != nil {
		req.BirthDate, req.BirthDateEstimated = eventDate(birth)
		req.BirthPlace = birth.ChildValue("PLAC")
	}
	if death := rec.First("DEAT"); death != nil {
		req.DeathDate, req.DeathDateEstimated = eventDate(death)
		req.DeathPlace = death.ChildValue("PLAC")
	}

	var notes []string
	for _, n := range rec.All("NOTE") {
		if n.Value != "" {
			notes = append(notes, n.Value)
		}
	}
	for _, src := range rec.All("SOUR") {
		if src.Value != "" {
			notes = append(notes, "Source: "+src.Value)
		}
	}
	req.Notes = strings.Join(notes, "\n")

	if rec.XRef != "" {
		req.Identifiers = []models.Identifier{{Kind: "gedcom_xref", Value: rec.XRef}}
	}

	return s.persons.CreatePerson(ctx, userID, treeID, req)
}

// importFamily turns one FAM record into a spousal edge between husband
// and wife plus a parent-child edge per parent per child. Pointers that
// resolve to no imported individual are skipped.
func (s *ImportService) importFamily(ctx context.Context, userID string, rec *gedcom.Node, pointers map[string]uuid.UUID, result *ImportResult) {
	husband, hasHusband := resolvePointer(rec.ChildValue("HUSB"), pointers)
	wife, hasWife := resolvePointer(rec.ChildValue("WIFE"), pointers)
	if rec.ChildValue("HUSB") != "" && !hasHusband {
		s.log.Warn("unresolved HUSB pointer", "xref", rec.XRef, "pointer", rec.ChildValue("HUSB"))
		result.RecordsSkipped++
	}
	if rec.ChildValue("WIFE") != "" && !hasWife {
		s.log.Warn("unresolved WIFE pointer", "xref", rec.XRef, "pointer", rec.ChildValue("WIFE"))
		result.RecordsSkipped++
	}

	if hasHusband && hasWife {
		req := &CreateRelationshipRequest{
			Person1ID: husband,
			Person2ID: wife,
			Type:      models.TypeSpousal,
			Status:    spousalStatusPtr(models.StatusMarried),
		}
		if marr := rec.First("MARR"); marr != nil {
			if date, _ := eventDate(marr); date != nil {
				req.StartDate = date
				req.Events = append(req.Events, models.RelationshipEvent{
					Type:  "marriage",
					Date:  date,
					Place: marr.ChildValue("PLAC"),
				})
			}
		}
		s.createEdge(ctx, userID, rec.XRef, req, result)
	}

	for _, childNode := range rec.All("CHIL") {
		child, ok := resolvePointer(childNode.Value, pointers)
		if !ok {
			s.log.Warn("unresolved CHIL pointer", "xref", rec.XRef, "pointer", childNode.Value)
			result.RecordsSkipped++
			continue
		}
		if hasHusband {
			s.createEdge(ctx, userID, rec.XRef, &CreateRelationshipRequest{
				Person1ID:    husband,
				Person2ID:    child,
				Type:         models.TypeParentChild,
				ParentalRole: parentalRolePtr(models.RoleFather),
			}, result)
		}
		if hasWife {
			s.createEdge(ctx, userID, rec.XRef, &CreateRelationshipRequest{
				Person1ID:    wife,
				Person2ID:    child,
				Type:         models.TypeParentChild,
				ParentalRole: parentalRolePtr(models.RoleMother),
			}, result)
		}
	}
}

func (s *ImportService) createEdge(ctx context.Context, userID, xref string, req *CreateRelationshipRequest, result *ImportResult) {
	if _, err := s.graph.CreateRelationship(ctx, userID, req); err != nil {
		if apperr.IsKind(err, apperr.KindConflict) {
			// The edge already exists, re-imports are tolerated
			return
		}
		s.log.Warn("skipping family link", "xref", xref, "error", err)
		result.RecordsSkipped++
		return
	}
	result.RelationshipsCreated++
}

// splitGedcomName breaks "Given /Surname/ suffix" into its parts
func splitGedcomName(name string) (first, last string) {
	open := strings.Index(name, "/")
	if open < 0 {
		return strings.TrimSpace(name), ""
	}
	first = strings.TrimSpace(name[:open])
	rest := name[open+1:]
	if end := strings.Index(rest, "/"); end >= 0 {
		last = strings.TrimSpace(rest[:end])
	} else {
		last = strings.TrimSpace(rest)
	}
	return first, last
}

func eventDate(event *gedcom.Node) (*time.Time, bool) {
	raw := event.ChildValue("DATE")
	if raw == "" {
		return nil, false
	}
	date, estimated, ok := gedcom.ParseDate(raw)
	if !ok {
		return nil, false
	}
	return &date, estimated
}

func resolvePointer(pointer string, pointers map[string]uuid.UUID) (uuid.UUID, bool) {
	id, ok := pointers[strings.Trim(pointer, "@")]
	return id, ok
}

func spousalStatusPtr(s models.SpousalStatus) *models.SpousalStatus { return &s }

func parentalRolePtr(r models.ParentalRole) *models.ParentalRole { return &r }
