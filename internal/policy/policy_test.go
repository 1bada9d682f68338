package policy

import (
	"regexp"
	"strings"
	"testing"

	"pushdown/internal/schema"
)

var identRe = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)

func TestSanitize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"employeeId", "EMPLOYEEID"},
		{"first name", "FIRST_NAME"},
		{"Příjmení", "PRIJMENI"},
		{"9lives", "_9LIVES"},
		{"", Placeholder},
		{"$", "_"},
		{"a.b-c", "A_B_C"},
		{"__x__", "__X__"},
		{"日本", "__"},
		{"company_code", "COMPANY_CODE"},
	}
	for _, tc := range cases {
		if got := Sanitize(tc.in); got != tc.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitize_IdempotentAndTotal(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"", " ", "1", "0abc", "ÀÉÎÕÜ", "tab\there", "emoji😀key", "x.y.z",
		"already_SANITIZED_9", strings.Repeat("long", 30), "9" + strings.Repeat("z", 80),
		"\x00\xff", "snake_case", "camelCase", "-",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		if !identRe.MatchString(once) {
			t.Errorf("Sanitize(%q) = %q does not match %s", in, once, identRe)
		}
		if len(once) > MaxIdentLen {
			t.Errorf("Sanitize(%q) len = %d > %d", in, len(once), MaxIdentLen)
		}
		if twice := Sanitize(once); twice != once {
			t.Errorf("Sanitize not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestIsExcluded(t *testing.T) {
	t.Parallel()

	for _, id := range []string{
		"ANNUALSALARY", "HOURLYRATE", "PAYGROUP", "BASE_PAY", "TOTAL_COMPENSATION",
		"MINWAGE", "EARNINGS_YTD", "AMOUNT", "rate", "XsalaryX", "PRORATED",
	} {
		if !IsExcluded(id) {
			t.Errorf("IsExcluded(%q) = false, want true", id)
		}
	}
	for _, id := range []string{"EMPLOYEEID", "FIRSTNAME", "COMPANYCODE", "DEPARTMENT", "HIREDATE", "P_A_Y"} {
		if IsExcluded(id) {
			t.Errorf("IsExcluded(%q) = true, want false", id)
		}
	}
}

func TestIsExcluded_EveryTerm(t *testing.T) {
	t.Parallel()

	for _, term := range SensitiveTerms {
		for _, id := range []string{term, "X_" + term, term + "_Y", strings.ToLower(term)} {
			if !IsExcluded(id) {
				t.Errorf("IsExcluded(%q) = false", id)
			}
		}
	}
}

func TestIsFilterKey(t *testing.T) {
	t.Parallel()

	yes := []string{"companyCode", "COMPANY_CODE", "homeCompanyCode", "codeOfCompany"}
	no := []string{"company", "code", "companyId", "cmpnyCode"}
	for _, k := range yes {
		if !IsFilterKey(k) {
			t.Errorf("IsFilterKey(%q) = false", k)
		}
	}
	for _, k := range no {
		if IsFilterKey(k) {
			t.Errorf("IsFilterKey(%q) = true", k)
		}
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	keys := []schema.Key{
		{Name: "employeeId", Type: schema.Number},
		{Name: "companyCode", Type: schema.Varchar},
		{Name: "annualSalary", Type: schema.Number},
		{Name: "first-name", Type: schema.Varchar},
		{Name: "first_name", Type: schema.Varchar},
		{Name: "homeCompanyCode", Type: schema.Varchar},
		{Name: "bonusTarget", Type: schema.Number},
	}
	plan := New(Options{ExtraSensitiveTerms: []string{" bonus ", ""}}).Classify(keys)

	if len(plan.Columns) != len(keys) {
		t.Fatalf("Columns = %d, want %d", len(plan.Columns), len(keys))
	}
	wantNames := []string{"EMPLOYEEID", "COMPANYCODE", "ANNUALSALARY", "FIRST_NAME", "FIRST_NAME_2", "HOMECOMPANYCODE", "BONUSTARGET"}
	for i, c := range plan.Columns {
		if c.Name != wantNames[i] {
			t.Errorf("Columns[%d].Name = %q, want %q", i, c.Name, wantNames[i])
		}
		if c.Key != keys[i].Name || c.Type != keys[i].Type {
			t.Errorf("Columns[%d] lost key/type: %+v", i, c)
		}
	}

	var excluded []string
	for _, c := range plan.Excluded() {
		excluded = append(excluded, c.Name)
		if c.Reason == "" {
			t.Errorf("%s excluded without reason", c.Name)
		}
	}
	if strings.Join(excluded, ",") != "ANNUALSALARY,BONUSTARGET" {
		t.Fatalf("excluded = %v", excluded)
	}
	if got := len(plan.Included()); got != 5 {
		t.Fatalf("included = %d, want 5", got)
	}

	if plan.FilterKey == nil || plan.FilterKey.Name != "companyCode" {
		t.Fatalf("FilterKey = %+v, want companyCode", plan.FilterKey)
	}
}

func TestClassify_NoFilterKey(t *testing.T) {
	t.Parallel()

	plan := New(Options{}).Classify([]schema.Key{{Name: "a"}, {Name: "b"}})
	if plan.FilterKey != nil {
		t.Fatalf("FilterKey = %+v, want nil", plan.FilterKey)
	}
}

func TestClassify_TruncationCannotHideTerm(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 70) + "Salary"
	plan := New(Options{}).Classify([]schema.Key{{Name: long}})
	c := plan.Columns[0]
	if c.Included {
		t.Fatalf("column %q should be excluded", c.Name)
	}
	if len(c.Name) > MaxIdentLen {
		t.Fatalf("name len = %d", len(c.Name))
	}
}

func TestNew_CannotDropBuiltins(t *testing.T) {
	t.Parallel()

	p := New(Options{ExtraSensitiveTerms: []string{"ssn"}})
	terms := p.Terms()
	if len(terms) != len(SensitiveTerms)+1 || terms[len(terms)-1] != "SSN" {
		t.Fatalf("Terms() = %v", terms)
	}
	if !p.Excluded("BASE_PAY") || !p.Excluded("EMPLOYEE_SSN") {
		t.Fatalf("Excluded missing built-in or extra term")
	}
}

func TestUniqueIdent_RespectsMaxLen(t *testing.T) {
	t.Parallel()

	base := strings.Repeat("A", MaxIdentLen)
	taken := map[string]struct{}{base: {}}
	got := uniqueIdent(base, taken)
	if len(got) != MaxIdentLen || !strings.HasSuffix(got, "_2") {
		t.Fatalf("uniqueIdent = %q (len %d)", got, len(got))
	}
}
