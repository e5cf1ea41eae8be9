package game

// Faces per die. Bids name a face in [1,Faces].
const Faces = 6

// Bid is a claim that at least Count dice across all hands show Face
// (or count as Face while ones are wild).
type Bid struct {
	Count int
	Face  int
}

// NoBid is the standing bid before any bid has been made in a round.
// Count 0 with the highest face means any raise is legal. It is a
// documented sentinel, not a real bid.
var NoBid = Bid{Count: 0, Face: Faces}

// Less reports whether b is strictly below other in (count, face)
// lexical order.
func (b Bid) Less(other Bid) bool {
	if b.Count != other.Count {
		return b.Count < other.Count
	}
	return b.Face < other.Face
}

// Pair returns the wire representation [count, face].
func (b Bid) Pair() [2]int {
	return [2]int{b.Count, b.Face}
}

// BidEntry is one entry of a round's bid history on the wire:
// [count, face, seat].
type BidEntry [3]int

// Count returns the bid count of the entry.
func (e BidEntry) Count() int { return e[0] }

// Face returns the bid face of the entry.
func (e BidEntry) Face() int { return e[1] }

// Seat returns the seat index that made the bid.
func (e BidEntry) Seat() int { return e[2] }

// ResultKind tags how a round ended.
type ResultKind string

const (
	// GoodCall means the standing bid was false and the last bidder
	// lost a die.
	GoodCall ResultKind = "good_call"
	// BadCall means the standing bid held and the caller lost a die.
	BadCall ResultKind = "bad_call"
	// ErrBadResponse covers malformed or absent response payloads.
	ErrBadResponse ResultKind = "error_bad_response"
	// ErrTimeout means no response arrived within the move timeout.
	ErrTimeout ResultKind = "error_timeout"
	// ErrLowerCount means the bid count decreased.
	ErrLowerCount ResultKind = "error_lower_count"
	// ErrIncreaseCount means the count was unchanged but the face did
	// not strictly increase.
	ErrIncreaseCount ResultKind = "error_increase_count"
	// ErrOverflow means the bid count exceeded the dice left in play.
	ErrOverflow ResultKind = "error_overflow"
)

// Violation reports whether the result kind charges a rule violation
// rather than resolving a call.
func (r ResultKind) Violation() bool {
	switch r {
	case GoodCall, BadCall:
		return false
	}
	return true
}

const (
	// ResponseBid declares a new standing bid.
	ResponseBid = "bid"
	// ResponseCall challenges the standing bid.
	ResponseCall = "call"
)

// Response is a bot's answer to a move request.
type Response struct {
	ResponseType string  `json:"response_type"`
	Bid          *[2]int `json:"bid,omitempty"`
}

// Hand counts dice showing each face; index 0 is face 1.
type Hand [Faces]int

// Total returns the number of dice in the hand.
func (h Hand) Total() int {
	n := 0
	for _, c := range h {
		n += c
	}
	return n
}
