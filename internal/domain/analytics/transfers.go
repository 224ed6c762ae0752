package analytics

import (
	"slices"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
)

// RejectReason names the constraint a candidate violates.
type RejectReason string

const (
	RejectOverBudget       RejectReason = "over_budget"
	RejectPositionMismatch RejectReason = "position_mismatch"
	RejectClubLimit        RejectReason = "club_limit"
	RejectAlreadyOwned     RejectReason = "already_owned"
	RejectUnavailable      RejectReason = "unavailable"
	RejectInsufficientData RejectReason = "insufficient_data"
	RejectUnknownPlayer    RejectReason = "unknown_player"
)

// TransferCandidate is a scored replacement.
type TransferCandidate struct {
	Player        PlayerRef      `json:"player"`
	Form          *float64       `json:"form,omitempty"`
	AvgDifficulty *float64       `json:"avg_difficulty,omitempty"`
	PriceDelta    model.Price    `json:"price_delta"`
	Score         *float64       `json:"score,omitempty"`
	Reasons       []RejectReason `json:"reasons,omitempty"`

	id    int
	raw   float64
	form  float64
	price model.Price
}

// OutgoingPlan lists replacements for one outgoing player.
type OutgoingPlan struct {
	Outgoing     PlayerRef           `json:"outgoing"`
	OutgoingForm *float64            `json:"outgoing_form,omitempty"`
	SellingPrice model.Price         `json:"selling_price"`
	Budget       model.Price         `json:"budget"`
	Suggestions  []TransferCandidate `json:"suggestions"`
	Rejected     []TransferCandidate `json:"rejected"`
}

// TransferSuggestions is the result of get_transfer_suggestions.
type TransferSuggestions struct {
	Bank    model.Price    `json:"bank"`
	Horizon int            `json:"horizon"`
	Plans   []OutgoingPlan `json:"plans"`
}

// SellingPrice is what the upstream pays back for a player: the current
// price, or the purchase price plus half the rise rounded down when it rose.
func SellingPrice(current, purchase model.Price) model.Price {
	if purchase <= 0 || current <= purchase {
		return current
	}
	return purchase + (current-purchase)/2
}

func cmpCandidates(a, b TransferCandidate) int {
	if c := cmpDesc(a.raw, b.raw); c != 0 {
		return c
	}
	if c := cmpDesc(a.form, b.form); c != 0 {
		return c
	}
	if c := cmpInt(int(a.price), int(b.price)); c != 0 {
		return c
	}
	return cmpInt(a.id, b.id)
}

// TransferSuggestions ranks replacements per outgoing player. A Position
// limits the plans to outgoing players of that position. Candidates that
// violate a constraint are reported with every reason that applies instead
// of being dropped. With an explicit candidate list all rejections are
// reported; otherwise only those that would have outscored the last
// suggestion are.
func (e *Engine) TransferSuggestions(snap *model.Snapshot, params TransferParams) (TransferSuggestions, error) {
	const op = "get_transfer_suggestions"
	params, err := params.Normalize(e.cfg)
	if err != nil {
		return TransferSuggestions{}, err
	}
	outgoing := make([]model.Player, 0, len(params.Outgoing))
	for _, id := range params.Outgoing {
		p, err := lookupPlayer(snap, op, id)
		if err != nil {
			return TransferSuggestions{}, err
		}
		if params.Position != model.PositionAny && p.Position != params.Position {
			continue
		}
		outgoing = append(outgoing, p)
	}
	if len(outgoing) == 0 {
		return TransferSuggestions{}, fault.Invalid(op, "position", "no outgoing player plays %s", params.Position)
	}

	owned := map[int]bool{}
	for _, id := range params.Owned {
		owned[id] = true
	}
	for _, id := range params.Outgoing {
		owned[id] = true
	}

	scale := leagueScale(snap)
	forms := map[int]FormScore{}
	formOf := func(p model.Player) FormScore {
		f, ok := forms[p.ID]
		if !ok {
			f = e.formOf(snap, p, e.cfg.FormWindow)
			forms[p.ID] = f
		}
		return f
	}
	ease := map[int]*float64{}
	easeOf := func(teamID int) *float64 {
		avg, ok := ease[teamID]
		if !ok {
			if t, found := snap.Team(teamID); found {
				if ol := e.outlook(snap, scale, t, params.Horizon); ol.Average != nil {
					avg = ptr(ol.avg)
				}
			}
			ease[teamID] = avg
		}
		return avg
	}

	out := TransferSuggestions{Bank: params.Bank, Horizon: params.Horizon, Plans: make([]OutgoingPlan, 0, len(outgoing))}
	for _, o := range outgoing {
		selling := SellingPrice(o.Price, params.PurchasePrices[o.ID])
		plan := OutgoingPlan{
			Outgoing:     playerRef(snap, o),
			OutgoingForm: formOf(o).Score,
			SellingPrice: selling,
			Budget:       selling + params.Bank,
			Suggestions:  []TransferCandidate{},
			Rejected:     []TransferCandidate{},
		}

		clubCount := map[int]int{}
		if len(params.Owned) > 0 {
			for id := range owned {
				if p, ok := snap.Player(id); ok && id != o.ID {
					clubCount[p.TeamID]++
				}
			}
		}

		explicit := len(params.Candidates) > 0
		pool := params.Candidates
		if !explicit {
			for _, id := range snap.PlayerIDs() {
				if p, _ := snap.Player(id); p.Position == o.Position && id != o.ID {
					pool = append(pool, id)
				}
			}
		}

		var accepted, rejected []TransferCandidate
		for _, id := range pool {
			c, ok := snap.Player(id)
			if !ok {
				rejected = append(rejected, TransferCandidate{
					Player:  PlayerRef{ID: id},
					Reasons: []RejectReason{RejectUnknownPlayer},
					id:      id,
				})
				continue
			}
			tc := TransferCandidate{
				Player:     playerRef(snap, c),
				PriceDelta: selling - c.Price,
				id:         c.ID,
				price:      c.Price,
			}
			if owned[c.ID] {
				tc.Reasons = append(tc.Reasons, RejectAlreadyOwned)
			}
			if c.Position != o.Position {
				tc.Reasons = append(tc.Reasons, RejectPositionMismatch)
			}
			if !available(c) {
				tc.Reasons = append(tc.Reasons, RejectUnavailable)
			}
			if c.Price > plan.Budget {
				tc.Reasons = append(tc.Reasons, RejectOverBudget)
			}
			if len(params.Owned) > 0 && clubCount[c.TeamID] >= e.cfg.ClubLimit {
				tc.Reasons = append(tc.Reasons, RejectClubLimit)
			}

			f := formOf(c)
			if !f.Sufficient() {
				tc.Reasons = append(tc.Reasons, RejectInsufficientData)
				rejected = append(rejected, tc)
				continue
			}
			tc.form = f.raw
			tc.Form = f.Score
			fixtureTerm := 0.0
			if avg := easeOf(c.TeamID); avg != nil {
				fixtureTerm = 10 - *avg
				tc.AvgDifficulty = ptr(round3(*avg))
			}
			tc.raw = e.cfg.TransferFormWeight*f.raw +
				e.cfg.TransferFixtureWeight*fixtureTerm +
				e.cfg.TransferPriceWeight*(selling-c.Price).Millions()
			tc.Score = ptr(round3(tc.raw))

			if len(tc.Reasons) > 0 {
				rejected = append(rejected, tc)
				continue
			}
			accepted = append(accepted, tc)
		}

		slices.SortFunc(accepted, cmpCandidates)
		if len(accepted) > params.Limit {
			accepted = accepted[:params.Limit]
		}
		if !explicit {
			rejected = slices.DeleteFunc(rejected, func(tc TransferCandidate) bool {
				if tc.Score == nil {
					return true
				}
				return len(accepted) == params.Limit && cmpCandidates(tc, accepted[len(accepted)-1]) > 0
			})
		}
		slices.SortFunc(rejected, func(a, b TransferCandidate) int {
			if (a.Score == nil) != (b.Score == nil) {
				if a.Score == nil {
					return 1
				}
				return -1
			}
			return cmpCandidates(a, b)
		})
		if !explicit && len(rejected) > params.Limit {
			rejected = rejected[:params.Limit]
		}
		if accepted != nil {
			plan.Suggestions = accepted
		}
		if rejected != nil {
			plan.Rejected = rejected
		}
		out.Plans = append(out.Plans, plan)
	}
	return out, nil
}
