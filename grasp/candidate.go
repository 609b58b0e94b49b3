package grasp

import (
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/simbotic/simgrasp/physics"
	"github.com/simbotic/simgrasp/spatialmath"
)

// fingerContacts enumerates every current contact on the arm's finger
// links, excluding self-contacts (the world sentinel and the arm's own
// end-effector body). It returns the world-space contact position on the
// finger for each candidate, plus the set of finger links touching each
// candidate.
func (c *Controller) fingerContacts() (map[Candidate]r3.Vector, map[Candidate]map[physics.LinkID]bool, error) {
	positions := map[Candidate]r3.Vector{}
	touching := map[Candidate]map[physics.LinkID]bool{}

	for _, finger := range c.arm.FingerLinks {
		contacts, err := c.eng.ContactPoints(finger.Body, finger.Link)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "arm %q: querying finger contacts", c.arm.Name)
		}
		for _, con := range contacts {
			if con.Body == physics.WorldBody || con.Body == c.arm.EndEffector.Body {
				continue
			}
			cand := Candidate{Body: con.Body, Link: con.Link}
			if _, ok := positions[cand]; !ok {
				positions[cand] = con.Position
			}
			if touching[cand] == nil {
				touching[cand] = map[physics.LinkID]bool{}
			}
			touching[cand][finger.Link] = true
		}
	}
	return positions, touching, nil
}

// raycastCollisions casts rays between every combination of grasp start and
// end anchor points, transformed into world space via current link poses,
// and returns the set of non-self bodies struck. Each batch is fired twice
// with different hit ordering so a ray whose first intersection is the
// gripper itself still reports the object behind it.
func (c *Controller) raycastCollisions() (map[Candidate]bool, error) {
	starts := make([]r3.Vector, 0, len(c.arm.GraspStartPoints))
	for _, gp := range c.arm.GraspStartPoints {
		pose, err := c.eng.LinkPose(gp.Link.Body, gp.Link.Link)
		if err != nil {
			return nil, errors.Wrapf(err, "arm %q: grasp start point pose", c.arm.Name)
		}
		starts = append(starts, spatialmath.TransformPoint(pose, gp.Offset))
	}
	ends := make([]r3.Vector, 0, len(c.arm.GraspEndPoints))
	for _, gp := range c.arm.GraspEndPoints {
		pose, err := c.eng.LinkPose(gp.Link.Body, gp.Link.Link)
		if err != nil {
			return nil, errors.Wrapf(err, "arm %q: grasp end point pose", c.arm.Name)
		}
		ends = append(ends, spatialmath.TransformPoint(pose, gp.Offset))
	}

	// Cartesian product: every start point is paired with every end point.
	rayStarts := make([]r3.Vector, 0, len(starts)*len(ends))
	rayEnds := make([]r3.Vector, 0, len(starts)*len(ends))
	for _, end := range ends {
		for _, start := range starts {
			rayStarts = append(rayStarts, start)
			rayEnds = append(rayEnds, end)
		}
	}

	hits := map[Candidate]bool{}
	for hitNumber := 0; hitNumber < 2; hitNumber++ {
		results, err := c.eng.CastRays(rayStarts, rayEnds, hitNumber)
		if err != nil {
			return nil, errors.Wrapf(err, "arm %q: casting grasp rays", c.arm.Name)
		}
		for _, hit := range results {
			if hit.Body == physics.WorldBody || hit.Body == c.arm.EndEffector.Body {
				continue
			}
			hits[Candidate{Body: hit.Body, Link: hit.Link}] = true
		}
	}
	return hits, nil
}

// selectCandidate picks at most one body/link for the arm to grasp this
// step. It returns nil when nothing eligible is in the gripper: no contacts,
// contacts outside the projection volume, fewer than two fingers touching,
// or a candidate the registry reports as not assistable.
func (c *Controller) selectCandidate() (*Candidate, error) {
	positions, touching, err := c.fingerContacts()
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(positions))
	for cand := range positions {
		candidates = append(candidates, cand)
	}
	if c.mode == ModeAssisted {
		rayHits, err := c.raycastCollisions()
		if err != nil {
			return nil, err
		}
		filtered := candidates[:0]
		for _, cand := range candidates {
			if rayHits[cand] {
				filtered = append(filtered, cand)
			}
		}
		candidates = filtered
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Sort by id first so equidistant candidates resolve the same way on
	// every invocation, then stable-sort by distance to the grasp center.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Body != candidates[j].Body {
			return candidates[i].Body < candidates[j].Body
		}
		return candidates[i].Link < candidates[j].Link
	})

	eefPose, err := c.eng.LinkPose(c.arm.EndEffector.Body, c.arm.EndEffector.Link)
	if err != nil {
		return nil, errors.Wrapf(err, "arm %q: end-effector pose", c.arm.Name)
	}
	center := spatialmath.TransformPoint(eefPose, c.arm.GraspCenterOffset)

	dists := make(map[Candidate]float64, len(candidates))
	for _, cand := range candidates {
		pose, err := c.eng.LinkPose(cand.Body, cand.Link)
		if err != nil {
			return nil, errors.Wrapf(err, "arm %q: candidate pose", c.arm.Name)
		}
		dists[cand] = pose.Point().Sub(center).Norm()
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return dists[candidates[i]] < dists[candidates[j]]
	})
	nearest := candidates[0]

	if nearest.Body == c.arm.Robot {
		return nil, nil
	}
	fingers := c.arm.fingerLinkSet()
	touchingFingers := 0
	for link := range touching[nearest] {
		if fingers[link] {
			touchingFingers++
		}
	}
	if touchingFingers < minFingersInContact {
		return nil, nil
	}
	if !c.registry.CanAssistedGrasp(nearest.Body, nearest.Link) {
		return nil, nil
	}
	return &nearest, nil
}
