package testutil

import (
	"github.com/reglet-dev/lv2host/domain/entities"
	"github.com/reglet-dev/lv2host/domain/ports"
	"github.com/stretchr/testify/suite"
)

// StoreSuite checks the behaviour every ports.Store implementation shares.
// Embed it or run it with suite.Run after setting NewStore.
type StoreSuite struct {
	suite.Suite
	NewStore func() ports.Store
	store    ports.Store
}

func (s *StoreSuite) SetupTest() {
	s.Require().NotNil(s.NewStore, "NewStore must be set")
	s.store = s.NewStore()
}

func (s *StoreSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

var (
	subj  = entities.URI("urn:amp")
	typ   = entities.URI("http://www.w3.org/1999/02/22-rdf-syntax-ns#type")
	label = entities.URI("http://www.w3.org/2000/01/rdf-schema#label")
	class = entities.URI("http://lv2plug.in/ns/lv2core#Plugin")
)

func (s *StoreSuite) terms(refs []entities.TripleRef, pick func(entities.TripleRef) entities.TermID) []entities.Term {
	out := make([]entities.Term, 0, len(refs))
	for _, r := range refs {
		t, ok := s.store.Term(pick(r))
		s.Require().True(ok)
		out = append(out, t)
	}
	return out
}

func object(r entities.TripleRef) entities.TermID  { return r.Object }
func subject(r entities.TripleRef) entities.TermID { return r.Subject }

func (s *StoreSuite) TestInsertAndMatch() {
	s.Require().NoError(s.store.Insert("g1", []entities.Triple{
		{Subject: subj, Predicate: typ, Object: class},
		{Subject: subj, Predicate: label, Object: entities.String("Amp")},
		{Subject: subj, Predicate: label, Object: entities.LangString("Verstärker", "de")},
	}))

	refs, err := s.store.Match(entities.Pattern{Subject: subj, Predicate: label})
	s.Require().NoError(err)
	s.ElementsMatch(
		[]entities.Term{entities.String("Amp"), entities.LangString("Verstärker", "de")},
		s.terms(refs, object),
	)

	refs, err = s.store.Match(entities.Pattern{Predicate: typ, Object: class})
	s.Require().NoError(err)
	s.Equal([]entities.Term{subj}, s.terms(refs, subject))

	refs, err = s.store.Match(entities.Pattern{})
	s.Require().NoError(err)
	s.Len(refs, 3)
}

func (s *StoreSuite) TestMatchUnknownTermIsEmpty() {
	s.Require().NoError(s.store.Insert("g1", []entities.Triple{
		{Subject: subj, Predicate: typ, Object: class},
	}))

	refs, err := s.store.Match(entities.Pattern{Subject: entities.URI("urn:missing")})
	s.Require().NoError(err)
	s.Empty(refs)

	refs, err = s.store.Match(entities.Pattern{Subject: class})
	s.Require().NoError(err)
	s.Empty(refs)
}

func (s *StoreSuite) TestLiteralKindsAreDistinct() {
	s.Require().NoError(s.store.Insert("g1", []entities.Triple{
		{Subject: subj, Predicate: label, Object: entities.String("1")},
		{Subject: subj, Predicate: label, Object: entities.Int(1)},
		{Subject: subj, Predicate: label, Object: entities.Bool(true)},
	}))

	refs, err := s.store.Match(entities.Pattern{Subject: subj, Predicate: label, Object: entities.Int(1)})
	s.Require().NoError(err)
	s.Len(refs, 1)

	refs, err = s.store.Match(entities.Pattern{Subject: subj})
	s.Require().NoError(err)
	s.Len(refs, 3)
}

func (s *StoreSuite) TestDuplicateInsertIsIdempotent() {
	triples := []entities.Triple{{Subject: subj, Predicate: typ, Object: class}}
	s.Require().NoError(s.store.Insert("g1", triples))
	s.Require().NoError(s.store.Insert("g1", triples))

	n, err := s.store.DropGraph("g1")
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *StoreSuite) TestMatchDeduplicatesAcrossGraphs() {
	triples := []entities.Triple{{Subject: subj, Predicate: typ, Object: class}}
	s.Require().NoError(s.store.Insert("g1", triples))
	s.Require().NoError(s.store.Insert("g2", triples))

	refs, err := s.store.Match(entities.Pattern{Subject: subj})
	s.Require().NoError(err)
	s.Len(refs, 1)

	_, err = s.store.DropGraph("g1")
	s.Require().NoError(err)
	refs, err = s.store.Match(entities.Pattern{Subject: subj})
	s.Require().NoError(err)
	s.Len(refs, 1, "statement survives while another graph holds it")
}

func (s *StoreSuite) TestDropGraphReleasesTerms() {
	s.Require().NoError(s.store.Insert("g1", []entities.Triple{
		{Subject: subj, Predicate: typ, Object: class},
		{Subject: subj, Predicate: label, Object: entities.String("Amp")},
	}))
	refs, err := s.store.Match(entities.Pattern{Subject: subj, Predicate: label})
	s.Require().NoError(err)
	s.Require().Len(refs, 1)
	labelID := refs[0].Object

	n, err := s.store.DropGraph("g1")
	s.Require().NoError(err)
	s.Equal(2, n)

	_, ok := s.store.Term(labelID)
	s.False(ok)

	refs, err = s.store.Match(entities.Pattern{})
	s.Require().NoError(err)
	s.Empty(refs)

	n, err = s.store.DropGraph("g1")
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *StoreSuite) TestTermIDsAreNotReused() {
	triples := []entities.Triple{{Subject: subj, Predicate: label, Object: entities.String("Amp")}}
	s.Require().NoError(s.store.Insert("g1", triples))
	first, err := s.store.Match(entities.Pattern{Subject: subj})
	s.Require().NoError(err)
	s.Require().Len(first, 1)

	_, err = s.store.DropGraph("g1")
	s.Require().NoError(err)
	s.Require().NoError(s.store.Insert("g1", triples))

	second, err := s.store.Match(entities.Pattern{Subject: subj})
	s.Require().NoError(err)
	s.Require().Len(second, 1)
	s.NotEqual(first[0].Object, second[0].Object)
}

func (s *StoreSuite) TestMatchIsOrdered() {
	s.Require().NoError(s.store.Insert("g1", []entities.Triple{
		{Subject: entities.URI("urn:c"), Predicate: typ, Object: class},
		{Subject: entities.URI("urn:a"), Predicate: typ, Object: class},
		{Subject: entities.URI("urn:b"), Predicate: typ, Object: class},
	}))

	refs, err := s.store.Match(entities.Pattern{Predicate: typ})
	s.Require().NoError(err)
	s.Require().Len(refs, 3)
	s.Less(refs[0].Subject, refs[1].Subject)
	s.Less(refs[1].Subject, refs[2].Subject)
	s.Equal(
		[]entities.Term{entities.URI("urn:c"), entities.URI("urn:a"), entities.URI("urn:b")},
		s.terms(refs, subject),
		"IDs follow insertion order",
	)
}
