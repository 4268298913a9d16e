package risk

import (
	"fmt"
	"regexp"

	"github.com/nmartin15/claimflow/internal/model"
)

// Rule inspects one claim and contributes points (0-100) to its component's
// score when triggered. A nil factor means the rule did not fire.
type Rule interface {
	Name() string
	Evaluate(c *model.Claim, lines []model.ClaimLine) (points int, factor *model.RiskFactor)
}

// Rule sets per component. Registration is table-driven so adding a rule is
// an entry, not a scorer change.
var (
	codingRules = []Rule{
		missingPrincipalDiagnosis{},
		noDiagnoses{},
		malformedDiagnosis{},
		lineWithoutProcedure{},
		chargeMismatch{},
	}
	documentationRules = []Rule{
		incompleteRecord{},
		missingServiceDates{},
		missingPatientControl{},
		extractionWarnings{},
	}
)

type missingPrincipalDiagnosis struct{}

func (missingPrincipalDiagnosis) Name() string { return "missing-principal-diagnosis" }

func (missingPrincipalDiagnosis) Evaluate(c *model.Claim, _ []model.ClaimLine) (int, *model.RiskFactor) {
	if c.PrincipalDiagnosis != nil && *c.PrincipalDiagnosis != "" {
		return 0, nil
	}
	return 40, &model.RiskFactor{
		Name:           "missing-principal-diagnosis",
		Detail:         "claim carries no principal diagnosis",
		Recommendation: "add the principal diagnosis with an ABK/ABJ qualifier before submission",
	}
}

type noDiagnoses struct{}

func (noDiagnoses) Name() string { return "no-diagnoses" }

func (noDiagnoses) Evaluate(c *model.Claim, _ []model.ClaimLine) (int, *model.RiskFactor) {
	if len(c.DiagnosisCodes) > 0 {
		return 0, nil
	}
	return 50, &model.RiskFactor{
		Name:           "no-diagnoses",
		Detail:         "claim carries no diagnosis codes",
		Recommendation: "include at least one diagnosis (HI segment)",
	}
}

// icd10Shape is the coarse ICD-10-CM shape: letter, two digits, optional
// dotted extension.
var icd10Shape = regexp.MustCompile(`^[A-TV-Z][0-9][0-9A-Z](\.[0-9A-Z]{1,4})?$`)

type malformedDiagnosis struct{}

func (malformedDiagnosis) Name() string { return "malformed-diagnosis" }

func (malformedDiagnosis) Evaluate(c *model.Claim, _ []model.ClaimLine) (int, *model.RiskFactor) {
	bad := 0
	for _, code := range c.DiagnosisCodes {
		if !icd10Shape.MatchString(code) {
			bad++
		}
	}
	if bad == 0 {
		return 0, nil
	}
	points := 15 * bad
	if points > 45 {
		points = 45
	}
	return points, &model.RiskFactor{
		Name:           "malformed-diagnosis",
		Detail:         fmt.Sprintf("%d diagnosis code(s) do not match the ICD-10 shape", bad),
		Recommendation: "verify diagnosis codes against the current ICD-10-CM code set",
	}
}

type lineWithoutProcedure struct{}

func (lineWithoutProcedure) Name() string { return "line-without-procedure" }

func (lineWithoutProcedure) Evaluate(_ *model.Claim, lines []model.ClaimLine) (int, *model.RiskFactor) {
	missing := 0
	for _, l := range lines {
		if l.ProcedureCode == "" {
			missing++
		}
	}
	if missing == 0 {
		return 0, nil
	}
	return 25, &model.RiskFactor{
		Name:           "line-without-procedure",
		Detail:         fmt.Sprintf("%d service line(s) carry no procedure code", missing),
		Recommendation: "populate the SV1/SV2 procedure composite on every line",
	}
}

type chargeMismatch struct{}

func (chargeMismatch) Name() string { return "charge-mismatch" }

func (chargeMismatch) Evaluate(c *model.Claim, lines []model.ClaimLine) (int, *model.RiskFactor) {
	if len(lines) == 0 || c.TotalChargeCents == 0 {
		return 0, nil
	}
	sum := model.LineChargeSumCents(lines)
	if sum == c.TotalChargeCents {
		return 0, nil
	}
	return 20, &model.RiskFactor{
		Name: "charge-mismatch",
		Detail: fmt.Sprintf("line charges sum to %d cents, claim total is %d cents",
			sum, c.TotalChargeCents),
		Recommendation: "reconcile CLM02 with the service line charges",
	}
}

type incompleteRecord struct{}

func (incompleteRecord) Name() string { return "incomplete-record" }

func (incompleteRecord) Evaluate(c *model.Claim, _ []model.ClaimLine) (int, *model.RiskFactor) {
	if !c.Incomplete {
		return 0, nil
	}
	return 40, &model.RiskFactor{
		Name:           "incomplete-record",
		Detail:         "claim was ingested with required fields missing",
		Recommendation: "review the claim's extraction warnings and resubmit the corrected file",
	}
}

type missingServiceDates struct{}

func (missingServiceDates) Name() string { return "missing-service-dates" }

func (missingServiceDates) Evaluate(c *model.Claim, _ []model.ClaimLine) (int, *model.RiskFactor) {
	if c.ServiceDate != nil || c.StatementStart != nil {
		return 0, nil
	}
	return 30, &model.RiskFactor{
		Name:           "missing-service-dates",
		Detail:         "claim carries neither a service date nor statement dates",
		Recommendation: "add DTP*472 or DTP*434 dates",
	}
}

type missingPatientControl struct{}

func (missingPatientControl) Name() string { return "missing-patient-control" }

func (missingPatientControl) Evaluate(c *model.Claim, _ []model.ClaimLine) (int, *model.RiskFactor) {
	if c.PatientControlNumber != nil && *c.PatientControlNumber != "" {
		return 0, nil
	}
	return 15, &model.RiskFactor{
		Name:           "missing-patient-control",
		Detail:         "claim carries no patient control number",
		Recommendation: "include a REF*D9 reference so remittances can be matched without the payer's control number",
	}
}

type extractionWarnings struct{}

func (extractionWarnings) Name() string { return "extraction-warnings" }

func (extractionWarnings) Evaluate(c *model.Claim, _ []model.ClaimLine) (int, *model.RiskFactor) {
	n := len(c.Warnings)
	if n == 0 {
		return 0, nil
	}
	points := 5 * n
	if points > 30 {
		points = 30
	}
	return points, &model.RiskFactor{
		Name:           "extraction-warnings",
		Detail:         fmt.Sprintf("claim was ingested with %d extraction warning(s)", n),
		Recommendation: "inspect the warnings for fields the originator sends malformed",
	}
}
