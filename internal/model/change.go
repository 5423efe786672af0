package model

// ChangeType classifies a position-level difference between two snapshots.
type ChangeType string

const (
	ChangeNew       ChangeType = "NEW_POSITION"
	ChangeIncreased ChangeType = "INCREASED"
	ChangeDecreased ChangeType = "DECREASED"
	ChangeSold      ChangeType = "SOLD"
	ChangeUnchanged ChangeType = "UNCHANGED"
)

// Bullish reports whether the change adds exposure.
func (c ChangeType) Bullish() bool { return c == ChangeNew || c == ChangeIncreased }

// Bearish reports whether the change removes exposure.
func (c ChangeType) Bearish() bool { return c == ChangeSold || c == ChangeDecreased }

// PortfolioChange is one security's difference between two snapshots.
type PortfolioChange struct {
	SecurityID     string     `json:"security_id"`
	IssuerName     string     `json:"issuer_name"`
	ChangeType     ChangeType `json:"change_type"`
	PreviousShares int64      `json:"previous_shares"`
	CurrentShares  int64      `json:"current_shares"`
	PreviousValue  int64      `json:"previous_value"`
	CurrentValue   int64      `json:"current_value"`
	ShareDelta     int64      `json:"share_delta"`
	ValueDelta     int64      `json:"value_delta"`
	PercentDelta   float64    `json:"percent_delta"`
	IsMajorMove    bool       `json:"is_major_move"`
	IsSignificant  bool       `json:"is_significant"`
}

// ChangeSummary aggregates a change set.
type ChangeSummary struct {
	NewPositions    int   `json:"new_positions"`
	SoldPositions   int   `json:"sold_positions"`
	Increased       int   `json:"increased"`
	Decreased       int   `json:"decreased"`
	MajorMoves      int   `json:"major_moves"`
	PreviousValue   int64 `json:"previous_value"`
	CurrentValue    int64 `json:"current_value"`
	TotalValueDelta int64 `json:"total_value_delta"`
}

// ChangeSet is the diff of one investor's portfolio across a quarter boundary.
type ChangeSet struct {
	InvestorID      string            `json:"investor_id"`
	PreviousQuarter QuarterKey        `json:"previous_quarter"`
	CurrentQuarter  QuarterKey        `json:"current_quarter"`
	Changes         []PortfolioChange `json:"changes"`
	Summary         ChangeSummary     `json:"summary"`
}

// Sentiment is the net direction of a trending security.
type Sentiment string

const (
	SentimentBullish Sentiment = "BULLISH"
	SentimentBearish Sentiment = "BEARISH"
	SentimentMixed   Sentiment = "MIXED"
)

// Participant is one investor's move in a trending security.
type Participant struct {
	InvestorID   string     `json:"investor_id"`
	ChangeType   ChangeType `json:"change_type"`
	ShareDelta   int64      `json:"share_delta"`
	ValueDelta   int64      `json:"value_delta"`
	PercentDelta float64    `json:"percent_delta"`
	CurrentValue int64      `json:"current_value"`
	IsMajorMove  bool       `json:"is_major_move"`
}

// TrendingSecurity is a security moved by several investors in one boundary.
type TrendingSecurity struct {
	SecurityID          string        `json:"security_id"`
	IssuerName          string        `json:"issuer_name"`
	Participants        []Participant `json:"participants"`
	TotalInvestorCount  int           `json:"total_investor_count"`
	AggregateValueDelta int64         `json:"aggregate_value_delta"`
	NetValueDelta       int64         `json:"net_value_delta"`
	NetShareDelta       int64         `json:"net_share_delta"`
	TrendingScore       float64       `json:"trending_score"`
	Sentiment           Sentiment     `json:"sentiment"`
}

// TrendSummary counts a trend report by sentiment.
type TrendSummary struct {
	TotalSecurities int `json:"total_securities"`
	Bullish         int `json:"bullish"`
	Bearish         int `json:"bearish"`
	Mixed           int `json:"mixed"`
	ActiveInvestors int `json:"active_investors"`
}

// TrendReport is the ranked output of cross-investor aggregation.
type TrendReport struct {
	PreviousQuarter QuarterKey         `json:"previous_quarter"`
	CurrentQuarter  QuarterKey         `json:"current_quarter"`
	Securities      []TrendingSecurity `json:"securities"`
	Summary         TrendSummary       `json:"summary"`
}
