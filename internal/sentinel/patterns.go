package sentinel

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
)

// PatternRule is a named regular expression that flags structured data
// such as registration numbers, phone numbers or addresses.
type PatternRule struct {
	Name     string
	Regexp   *regexp.Regexp
	Category Category
	Severity int
}

// KeywordGroup is a named list of terms searched for as case-insensitive substrings.
type KeywordGroup struct {
	Name     string
	Keywords []string
	Category Category
	Severity int
}

// Registry is the immutable rule set the detector runs against.
// It is safe for concurrent use.
type Registry struct {
	patterns []PatternRule
	groups   []KeywordGroup
}

var (
	ErrInvalidSeverity = errors.New("severity must be between 1 and 10")
	ErrInvalidCategory = errors.New("invalid category")
	ErrEmptyKeyword    = errors.New("keyword must not be empty")
	ErrNilRegexp       = errors.New("pattern rule has no compiled expression")
)

// NewRegistry validates and copies the given rules. Declared order is kept
// and determines the order of detected violations.
func NewRegistry(patterns []PatternRule, groups []KeywordGroup) (*Registry, error) {
	reg := &Registry{
		patterns: make([]PatternRule, 0, len(patterns)),
		groups:   make([]KeywordGroup, 0, len(groups)),
	}

	for _, p := range patterns {
		if p.Regexp == nil {
			return nil, fmt.Errorf("pattern %q: %w", p.Name, ErrNilRegexp)
		}
		if err := checkRule(p.Category, p.Severity); err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p.Name, err)
		}
		reg.patterns = append(reg.patterns, p)
	}

	for _, g := range groups {
		if err := checkRule(g.Category, g.Severity); err != nil {
			return nil, fmt.Errorf("keyword group %q: %w", g.Name, err)
		}
		keywords := make([]string, len(g.Keywords))
		for i, kw := range g.Keywords {
			if kw == "" {
				return nil, fmt.Errorf("keyword group %q: %w", g.Name, ErrEmptyKeyword)
			}
			keywords[i] = kw
		}
		g.Keywords = keywords
		reg.groups = append(reg.groups, g)
	}

	return reg, nil
}

func checkRule(c Category, severity int) error {
	if !c.Valid() {
		return ErrInvalidCategory
	}
	if severity < 1 || severity > 10 {
		return ErrInvalidSeverity
	}
	return nil
}

// Patterns returns a copy of the pattern rules in declared order.
func (r *Registry) Patterns() []PatternRule {
	out := make([]PatternRule, len(r.patterns))
	copy(out, r.patterns)
	return out
}

// KeywordGroups returns a copy of the keyword groups in declared order.
func (r *Registry) KeywordGroups() []KeywordGroup {
	out := make([]KeywordGroup, len(r.groups))
	for i, g := range r.groups {
		g.Keywords = append([]string(nil), g.Keywords...)
		out[i] = g
	}
	return out
}

// KeywordCount is the total number of keywords across all groups.
func (r *Registry) KeywordCount() int {
	n := 0
	for _, g := range r.groups {
		n += len(g.Keywords)
	}
	return n
}

// DefaultRegistry returns the built-in rule set. It is built once and shared.
var DefaultRegistry = sync.OnceValue(func() *Registry {
	reg, err := NewRegistry(DefaultPatterns(), DefaultKeywordGroups())
	if err != nil {
		panic("sentinel: invalid built-in rules: " + err.Error())
	}
	return reg
})

// DefaultPatterns returns the built-in detection patterns. Every expression
// is matched case-insensitively.
func DefaultPatterns() []PatternRule {
	raw := []struct {
		name     string
		pattern  string
		category Category
		severity int
	}{
		// personal information
		{"resident registration number", `\d{6}[-\s]?[1-4]\d{6}`, PersonalInfo, 10},
		{"foreigner registration number", `\d{6}[-\s]?[5-8]\d{6}`, PersonalInfo, 10},
		{"passport number", `[A-Z]{1,2}\d{8,9}`, PersonalInfo, 9},
		{"driver license number", `\d{2}[-\s]?\d{2}[-\s]?\d{6}[-\s]?\d{2}|[가-힣]+\d{2}-\d{6}-\d{2}`, PersonalInfo, 9},
		{"credit card number", `\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}`, PersonalInfo, 10},
		{"bank account number", `\d{3,6}[-\s]?\d{2,8}[-\s]?\d{4,}`, PersonalInfo, 9},
		{"mobile phone number", `01[016789][-\s]?\d{3,4}[-\s]?\d{4}`, PersonalInfo, 7},
		{"landline phone number", `0\d{1,2}[-\s]?\d{3,4}[-\s]?\d{4}`, PersonalInfo, 6},
		{"email address", `[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`, PersonalInfo, 7},

		// system information
		{"IP address", `\b(?:\d{1,3}\.){3}\d{1,3}\b`, SystemInfo, 8},
		{"MAC address", `(?:[0-9a-f]{2}[:-]){5}[0-9a-f]{2}`, SystemInfo, 8},
		{"URL", `https?://[^\s]+`, SystemInfo, 6},
		{"password assignment", `(?:(?:password|passwd|pwd|pass)\s*[:=]|(?:비밀번호|패스워드|암호)\s*(?:[:=]|[은는이가]?\s))\s*\S+`, SystemInfo, 10},
		{"API key assignment", `(?:api[_-]?key|apikey|access[_-]?token)\s*[:=]\s*["']?[\w-]+["']?`, SystemInfo, 10},

		// location
		{"street address", `[가-힣]+[시도]\s+[가-힣]+[구군]\s+[가-힣]+[동읍면]\s+\d+[-\d]*`, Location, 8},
		{"lot number address", `[가-힣]+[동읍면리]\s+\d+[-\d]*번지`, Location, 7},

		// financial
		{"amount in hundred-million won", `\d+[,\d]*\s*억\s*(?:\d+[,\d]*\s*만\s*)?원`, Financial, 7},
		{"large amount in won", `\d{6,}[,\d]*\s*원`, Financial, 6},

		// power infrastructure
		{"substation name", `[가-힣]+\s*\d*호?\s*변전소`, TechnicalInfo, 8},
		{"power plant name", `[가-힣]+\s*(?:화력|원자력|수력)\s*발전소`, TechnicalInfo, 9},
		{"power quantity", `\d+\.?\d*\s*(?:kW|MW|GW|kWh|MWh|GWh)`, TechnicalInfo, 7},

		// organization
		{"employee name with title", `[가-힣]{2,4}\s*(?:사장|부사장|전무|상무|이사|부장|차장|과장|대리|주임)`, Organization, 8},
		{"department name", `(?:본부|실|부|팀|센터)\s*(?:장\s*)?[가-힣]{2,}`, Organization, 6},
	}

	patterns := make([]PatternRule, 0, len(raw))
	for _, r := range raw {
		patterns = append(patterns, PatternRule{
			Name:     r.name,
			Regexp:   regexp.MustCompile(`(?i)` + r.pattern),
			Category: r.category,
			Severity: r.severity,
		})
	}
	return patterns
}

// DefaultKeywordGroups returns the built-in keyword groups.
func DefaultKeywordGroups() []KeywordGroup {
	return []KeywordGroup{
		{
			Name: "confidential_markers",
			Keywords: []string{
				"대외비", "비밀", "극비", "1급비밀", "2급비밀", "3급비밀",
				"CONFIDENTIAL", "SECRET", "TOP SECRET", "내부자료", "사내전용",
				"열람제한", "배포금지",
			},
			Category: Confidential,
			Severity: 10,
		},
		{
			Name: "power_infrastructure",
			Keywords: []string{
				"SCADA", "EMS", "DMS", "OMS", "ADMS",
				"배전자동화", "원격감시", "원격제어",
				"계통운영", "전력계통", "송배전망",
				"보호계전", "차단기위치", "개폐기",
				"KEPCO-NET", "KDN시스템",
			},
			Category: TechnicalInfo,
			Severity: 9,
		},
		{
			Name: "security_systems",
			Keywords: []string{
				"방화벽", "firewall", "IPS", "IDS", "VPN설정", "ACL",
				"접근통제", "인증서버", "Active Directory", "LDAP",
				"백업서버", "DB서버", "운영서버",
			},
			Category: SystemInfo,
			Severity: 9,
		},
		{
			Name: "management_info",
			Keywords: []string{
				"입찰정보", "낙찰가", "계약금액", "견적서",
				"경영전략", "사업계획", "투자계획",
				"인사평가", "급여", "성과급", "인센티브",
				"재무제표", "손익계산서", "대차대조표",
			},
			Category: Confidential,
			Severity: 9,
		},
		{
			Name: "customer_info",
			Keywords: []string{
				"고객명단", "수용가정보", "계약정보",
				"전력사용량", "요금정보", "미납정보",
				"고객DB", "CRM시스템",
			},
			Category: PersonalInfo,
			Severity: 10,
		},
		{
			Name: "access_info",
			Keywords: []string{
				"관리자권한", "root", "administrator", "비밀번호",
				"마스터키", "인증키", "암호화키", "토큰", "session", "cookie값",
			},
			Category: SystemInfo,
			Severity: 10,
		},
	}
}
