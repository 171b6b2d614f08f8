package models

// Union identifies a postal union affiliation.
type Union string

const (
	UnionNALC  Union = "nalc"
	UnionAPWU  Union = "apwu"
	UnionNRLCA Union = "nrlca"
)

// Craft is a worker's craft/position, which determines union affiliation.
type Craft string

const (
	CraftCityCarrier  Craft = "city_carrier"
	CraftCCA          Craft = "cca"
	CraftClerk        Craft = "clerk"
	CraftMaintenance  Craft = "maintenance"
	CraftMVS          Craft = "mvs"
	CraftRuralCarrier Craft = "rural_carrier"
	CraftRCA          Craft = "rca"
	CraftOther        Craft = "other"
)

// TimeLimit is a contractual step deadline in days.
type TimeLimit struct {
	Days        int
	Description string
}

// ReferenceDocument points at a union contract or handbook.
type ReferenceDocument struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// UnionConfig carries the per-union vocabulary: crafts, display labels,
// terminology and contractual time limits.
type UnionConfig struct {
	Name       string
	FullName   string
	Crafts     []Craft
	Documents  []ReferenceDocument
	StepLabels map[GrievanceStep]string
	// Terminology maps generic roles to the union's preferred terms.
	Terminology map[string]string
	TimeLimits  map[DeadlineType]TimeLimit
}

var sharedStepLabels = map[GrievanceStep]string{
	StepFiled:       "Filed",
	StepInformalA:   "Informal Step A",
	StepFormalA:     "Formal Step A",
	StepB:           "Step B",
	StepArbitration: "Arbitration",
	StepResolved:    "Resolved",
}

var statusLabels = map[GrievanceStatus]string{
	StatusActive:    "Active",
	StatusResolved:  "Resolved",
	StatusSettled:   "Settled",
	StatusDenied:    "Denied",
	StatusWithdrawn: "Withdrawn",
}

var unionConfigs = map[Union]UnionConfig{
	UnionNALC: {
		Name:     "NALC",
		FullName: "National Association of Letter Carriers",
		Crafts:   []Craft{CraftCityCarrier, CraftCCA},
		Documents: []ReferenceDocument{
			{ID: "m41", Name: "M-41 Handbook", URL: "/docs/nalc/m41.pdf"},
			{ID: "elm", Name: "ELM (Employee and Labor Relations Manual)", URL: "/docs/nalc/elm.pdf"},
			{ID: "national_agreement", Name: "National Agreement", URL: "/docs/nalc/national.pdf"},
			{ID: "jcam", Name: "JCAM (Joint Contract Administration Manual)", URL: "/docs/nalc/jcam.pdf"},
		},
		StepLabels:  sharedStepLabels,
		Terminology: map[string]string{"employee": "Carrier", "representative": "Steward", "chapter": "Branch"},
		TimeLimits: map[DeadlineType]TimeLimit{
			DeadlineInformalA:   {Days: 14, Description: "Discussion with supervisor"},
			DeadlineFormalA:     {Days: 7, Description: "Formal written grievance"},
			DeadlineStepB:       {Days: 10, Description: "Appeal to Step B"},
			DeadlineArbitration: {Days: 15, Description: "Request arbitration"},
		},
	},
	UnionAPWU: {
		Name:     "APWU",
		FullName: "American Postal Workers Union",
		Crafts:   []Craft{CraftClerk, CraftMaintenance, CraftMVS},
		Documents: []ReferenceDocument{
			{ID: "contract", Name: "APWU Collective Bargaining Agreement", URL: "/docs/apwu/contract.pdf"},
			{ID: "handbook", Name: "APWU Steward Handbook", URL: "/docs/apwu/handbook.pdf"},
			{ID: "elm", Name: "ELM (Employee and Labor Relations Manual)", URL: "/docs/apwu/elm.pdf"},
		},
		StepLabels:  sharedStepLabels,
		Terminology: map[string]string{"employee": "Member", "representative": "Steward", "chapter": "Local"},
		TimeLimits: map[DeadlineType]TimeLimit{
			DeadlineInformalA:   {Days: 14, Description: "Discussion with supervisor"},
			DeadlineFormalA:     {Days: 10, Description: "Formal written grievance"},
			DeadlineStepB:       {Days: 8, Description: "Appeal to Step B"},
			DeadlineArbitration: {Days: 15, Description: "Request arbitration"},
		},
	},
	UnionNRLCA: {
		Name:     "NRLCA",
		FullName: "National Rural Letter Carriers Association",
		Crafts:   []Craft{CraftRuralCarrier, CraftRCA},
		Documents: []ReferenceDocument{
			{ID: "rural_agreement", Name: "Rural Carrier Agreement", URL: "/docs/nrlca/agreement.pdf"},
			{ID: "rural_handbook", Name: "Rural Carrier Handbook", URL: "/docs/nrlca/handbook.pdf"},
			{ID: "elm", Name: "ELM (Employee and Labor Relations Manual)", URL: "/docs/nrlca/elm.pdf"},
		},
		StepLabels:  sharedStepLabels,
		Terminology: map[string]string{"employee": "Rural Carrier", "representative": "Steward", "chapter": "State Association"},
		TimeLimits: map[DeadlineType]TimeLimit{
			DeadlineInformalA:   {Days: 14, Description: "Discussion with supervisor"},
			DeadlineFormalA:     {Days: 7, Description: "Formal written grievance"},
			DeadlineStepB:       {Days: 10, Description: "Appeal to Step B"},
			DeadlineArbitration: {Days: 15, Description: "Request arbitration"},
		},
	},
}

// UnionForCraft resolves a craft to its owning union. Unknown crafts
// (including "other") default to NALC.
func UnionForCraft(craft Craft) Union {
	for union, cfg := range unionConfigs {
		for _, c := range cfg.Crafts {
			if c == craft {
				return union
			}
		}
	}
	return UnionNALC
}

// ConfigForUnion returns the union configuration, defaulting to NALC.
func ConfigForUnion(union Union) UnionConfig {
	if cfg, ok := unionConfigs[union]; ok {
		return cfg
	}
	return unionConfigs[UnionNALC]
}

// StepLabel returns the display label for a step.
func StepLabel(step GrievanceStep) string {
	if label, ok := sharedStepLabels[step]; ok {
		return label
	}
	return string(step)
}

// StatusLabel returns the display label for a status.
func StatusLabel(status GrievanceStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}

// CraftLabel returns the human-readable craft name.
func CraftLabel(craft Craft) string {
	labels := map[Craft]string{
		CraftCityCarrier:  "City Carrier",
		CraftCCA:          "CCA (City Carrier Assistant)",
		CraftClerk:        "Clerk",
		CraftMaintenance:  "Maintenance",
		CraftMVS:          "Motor Vehicle Service",
		CraftRuralCarrier: "Rural Carrier",
		CraftRCA:          "RCA (Rural Carrier Associate)",
		CraftOther:        "Other",
	}
	if label, ok := labels[craft]; ok {
		return label
	}
	return string(craft)
}

// TimeLimitFor returns the contractual time limit a union grants for the
// given deadline type.
func TimeLimitFor(union Union, dt DeadlineType) (TimeLimit, bool) {
	limit, ok := ConfigForUnion(union).TimeLimits[dt]
	return limit, ok
}
