package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arborhq/lineage/common/apperr"
	"github.com/arborhq/lineage/common/gedcom"
	"github.com/arborhq/lineage/common/logger"
	"github.com/arborhq/lineage/common/models"
)

// ExportService serializes a tree to GEDCOM. Output is byte-deterministic
// for a fixed tree state: persons and relationships are walked in id order
// and family units are numbered in discovery order.
type ExportService struct {
	trees         TreeStore
	persons       PersonStore
	relationships RelationshipStore
	log           *logger.Logger
}

// NewExportService creates a new export service
func NewExportService(trees TreeStore, persons PersonStore, relationships RelationshipStore, log *logger.Logger) *ExportService {
	return &ExportService{trees: trees, persons: persons, relationships: relationships, log: log}
}

// familyUnit is an inferred FAM record: a spousal couple plus the
// children attached to it
type familyUnit struct {
	xref     string
	husband  uuid.UUID
	wife     uuid.UUID
	marriage *models.Relationship
	children []uuid.UUID
}

// Export writes the tree as GEDCOM and returns the suggested filename
func (s *ExportService) Export(ctx context.Context, userID string, treeID uuid.UUID, w io.Writer) (string, error) {
	tree, err := s.trees.GetByID(ctx, treeID)
	if err != nil {
		return "", err
	}
	if !tree.CanView(userID) {
		return "", apperr.Forbidden("not a member of this tree")
	}

	persons, err := s.persons.ListByTree(ctx, treeID)
	if err != nil {
		return "", err
	}
	rels, err := s.relationships.ListByTree(ctx, treeID)
	if err != nil {
		return "", err
	}

	byID := make(map[uuid.UUID]*models.Person, len(persons))
	personXRef := make(map[uuid.UUID]string, len(persons))
	for i, p := range persons {
		byID[p.ID] = p
		personXRef[p.ID] = fmt.Sprintf("@I%d@", i+1)
	}

	units, unitOf := s.inferFamilies(persons, rels, byID)

	records := []*gedcom.Node{headerRecord(tree)}
	for _, p := range persons {
		records = append(records, individualRecord(p, personXRef, units, unitOf))
	}
	for _, unit := range units {
		records = append(records, familyRecord(unit, personXRef))
	}
	records = append(records, &gedcom.Node{Tag: "TRLR"})

	if err := gedcom.Encode(w, records); err != nil {
		return "", apperr.Internal("encoding GEDCOM", err)
	}

	return exportFilename(tree), nil
}

// inferFamilies groups spousal edges into family units and attaches each
// child to the unit holding its parents. A child is attached to the unit
// containing both parents when one exists, otherwise to the first parent's
// unit. Parent links whose parent belongs to no couple cannot be expressed
// as a FAM record and are dropped.
func (s *ExportService) inferFamilies(persons []*models.Person, rels []*models.Relationship, byID map[uuid.UUID]*models.Person) ([]*familyUnit, map[uuid.UUID]*familyUnit) {
	var units []*familyUnit
	unitsBySpouse := map[uuid.UUID][]*familyUnit{}

	for _, rel := range rels {
		if rel.Type != models.TypeSpousal {
			continue
		}
		husband, wife := coupleOrder(rel.Person1ID, rel.Person2ID, byID)
		unit := &familyUnit{
			xref:     fmt.Sprintf("@F%d@", len(units)+1),
			husband:  husband,
			wife:     wife,
			marriage: rel,
		}
		units = append(units, unit)
		unitsBySpouse[husband] = append(unitsBySpouse[husband], unit)
		unitsBySpouse[wife] = append(unitsBySpouse[wife], unit)
	}

	parentsOf := map[uuid.UUID][]uuid.UUID{}
	for _, rel := range rels {
		if !rel.Type.IsParental() {
			continue
		}
		parentsOf[rel.Person2ID] = append(parentsOf[rel.Person2ID], rel.Person1ID)
	}

	unitOf := map[uuid.UUID]*familyUnit{}
	for _, p := range persons {
		parents := parentsOf[p.ID]
		if len(parents) == 0 {
			continue
		}
		sort.Slice(parents, func(i, j int) bool { return parents[i].String() < parents[j].String() })

		unit := unitWithBoth(parents, unitsBySpouse)
		if unit == nil {
			for _, parent := range parents {
				if owned := unitsBySpouse[parent]; len(owned) > 0 {
					unit = owned[0]
					break
				}
			}
		}
		if unit == nil {
			// Single parents without a spousal edge have no FAM to carry
			// the link, so it is lost in this format
			s.log.Debug("dropping parent links without a family unit", "person_id", p.ID)
			continue
		}
		unit.children = append(unit.children, p.ID)
		unitOf[p.ID] = unit
	}

	return units, unitOf
}

// coupleOrder picks HUSB and WIFE slots by gender, falling back to id
// order when gender does not decide
func coupleOrder(a, b uuid.UUID, byID map[uuid.UUID]*models.Person) (husband, wife uuid.UUID) {
	genderOf := func(id uuid.UUID) models.Gender {
		if p := byID[id]; p != nil {
			return p.Gender
		}
		return models.GenderUnknown
	}
	switch {
	case genderOf(a) == models.GenderMale || genderOf(b) == models.GenderFemale:
		return a, b
	case genderOf(b) == models.GenderMale || genderOf(a) == models.GenderFemale:
		return b, a
	case a.String() < b.String():
		return a, b
	default:
		return b, a
	}
}

func unitWithBoth(parents []uuid.UUID, unitsBySpouse map[uuid.UUID][]*familyUnit) *familyUnit {
	if len(parents) < 2 {
		return nil
	}
	for i := 0; i < len(parents); i++ {
		for j := i + 1; j < len(parents); j++ {
			for _, unit := range unitsBySpouse[parents[i]] {
				if unit.husband == parents[j] || unit.wife == parents[j] {
					return unit
				}
			}
		}
	}
	return nil
}

func headerRecord(tree *models.FamilyTree) *gedcom.Node {
	head := &gedcom.Node{Tag: "HEAD"}
	source := head.AddChild("SOUR", "LINEAGE")
	source.AddChild("NAME", "Lineage Family Graph")
	gedc := head.AddChild("GEDC", "")
	gedc.AddChild("VERS", "5.5.1")
	gedc.AddChild("FORM", "LINEAGE-LINKED")
	head.AddChild("CHAR", "UTF-8")
	head.AddChild("NOTE", "Exported from tree "+tree.Name)
	return head
}

func individualRecord(p *models.Person, personXRef map[uuid.UUID]string, units []*familyUnit, unitOf map[uuid.UUID]*familyUnit) *gedcom.Node {
	indi := &gedcom.Node{XRef: personXRef[p.ID], Tag: "INDI"}

	indi.AddChild("NAME", strings.TrimSpace(p.FirstName+" /"+p.LastName+"/"))
	switch p.Gender {
	case models.GenderMale:
		indi.AddChild("SEX", "M")
	case models.GenderFemale:
		indi.AddChild("SEX", "F")
	}

	addEvent(indi, "BIRT", p.BirthDate, p.BirthDateEstimated, p.BirthPlace)
	addEvent(indi, "DEAT", p.DeathDate, p.DeathDateEstimated, p.DeathPlace)

	if p.Notes != "" {
		indi.AddChild("NOTE", p.Notes)
	}

	// FAMS for every unit the person is a spouse in, FAMC for the unit
	// they are attached to as a child
	for _, unit := range units {
		if unit.husband == p.ID || unit.wife == p.ID {
			indi.AddChild("FAMS", unit.xref)
		}
	}
	if unit, ok := unitOf[p.ID]; ok {
		indi.AddChild("FAMC", unit.xref)
	}

	return indi
}

func familyRecord(unit *familyUnit, personXRef map[uuid.UUID]string) *gedcom.Node {
	fam := &gedcom.Node{XRef: unit.xref, Tag: "FAM"}
	if xref, ok := personXRef[unit.husband]; ok {
		fam.AddChild("HUSB", xref)
	}
	if xref, ok := personXRef[unit.wife]; ok {
		fam.AddChild("WIFE", xref)
	}

	if rel := unit.marriage; rel != nil {
		date := rel.StartDate
		place := ""
		for i := range rel.Events {
			if rel.Events[i].Type == "marriage" {
				if rel.Events[i].Date != nil {
					date = rel.Events[i].Date
				}
				place = rel.Events[i].Place
				break
			}
		}
		if date != nil || place != "" {
			marr := fam.AddChild("MARR", "")
			if date != nil {
				marr.AddChild("DATE", gedcom.FormatDate(*date))
			}
			if place != "" {
				marr.AddChild("PLAC", place)
			}
		}
	}

	for _, child := range unit.children {
		if xref, ok := personXRef[child]; ok {
			fam.AddChild("CHIL", xref)
		}
	}

	return fam
}

func addEvent(indi *gedcom.Node, tag string, date *time.Time, estimated bool, place string) {
	if date == nil && place == "" {
		return
	}
	event := indi.AddChild(tag, "")
	if date != nil {
		value := gedcom.FormatDate(*date)
		if estimated {
			value = "ABT " + value
		}
		event.AddChild("DATE", value)
	}
	if place != "" {
		event.AddChild("PLAC", place)
	}
}

// exportFilename builds "<treeName>_<treeId>.ged" with the name reduced
// to filesystem-safe characters
func exportFilename(tree *models.FamilyTree) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, tree.Name)
	if name == "" {
		name = "tree"
	}
	return fmt.Sprintf("%s_%s.ged", name, tree.ID)
}
