package extract

// Qualifier-to-field mappings are table-driven: supporting a new qualifier is
// a table entry, not an extractor change.

// diagnosisRoles maps HI code-list qualifiers to whether the codes they
// introduce are principal or other diagnoses. ABK/ABJ are the ICD-10
// principal qualifiers, APR/ABF the "other diagnosis" qualifiers; BK/BJ/BF
// are their ICD-9 predecessors, still seen from older originators.
var diagnosisRoles = map[string]bool{ // qualifier -> principal
	"ABK": true,
	"ABJ": true,
	"APR": false,
	"ABF": false,
	"BK":  true,
	"BJ":  true,
	"BF":  false,
}

// codeListVersions are HI composite values that tag the code list in use
// rather than naming a diagnosis. They are recorded, never emitted as codes.
var codeListVersions = map[string]bool{
	"I10": true,
	"I9":  true,
}

// claimDateQualifiers maps DTP01 qualifiers on an 837 claim loop to the
// date field they populate.
const (
	dateOnsetQualifier     = "431" // onset of current illness
	dateStatementQualifier = "434" // statement dates (often RD8)
	dateAdmissionQualifier = "435"
	dateDischargeQualifier = "096"
	dateServiceQualifier   = "472" // service date (claim or line level)
	dateInitialTreatment   = "454"
	dateAccidentQualifier  = "439"
	dateLastSeenQualifier  = "304"
	dateRepricingQualifier = "484" // payer repricing / adjudication date
)

// DTM01 qualifiers on an 835 claim payment loop bounding the service period.
const (
	dateQualServiceStart = "232"
	dateQualServiceEnd   = "233"
)

// claimDateFields routes DTP qualifiers into ClaimRecord date slots. Every
// DTP is also retained verbatim on the record for downstream consumers.
var claimDateFields = map[string]string{
	dateServiceQualifier:   "service",
	dateStatementQualifier: "statement",
	dateOnsetQualifier:     "onset",
	dateRepricingQualifier: "repricing",
	dateAdmissionQualifier: "admission",
	dateDischargeQualifier: "discharge",
}

// NM1 entity identifier codes consumed from claim and payment loops.
const (
	entityBillingProvider   = "85"
	entityRenderingProvider = "82"
	entityPayer             = "PR"
	entityPayee             = "PE"
	entityInsured           = "IL"
	entityPatient           = "QC"
)

// idQualifierNPI is the NM108 qualifier marking NM109 as an NPI.
const idQualifierNPI = "XX"

// refFields maps REF01 qualifiers to named reference slots on the records.
var refFields = map[string]string{
	"D9": "patient_control_number", // clearinghouse trace / patient control
	"EA": "medical_record_number",
	"F8": "original_reference_number",
	"6R": "line_control_number",
	"EV": "originator_id",
}

// adjustmentCategories maps CAS group codes to adjustment categories.
var adjustmentCategories = map[string]string{
	"CO": "contractual",
	"CR": "other", // corrections and reversals
	"OA": "other",
	"PI": "other", // payer initiated
	"PR": "patient-responsibility",
}

// AdjustmentCategory returns the category for a CAS group code, defaulting
// to "other" for groups outside the table.
func AdjustmentCategory(group string) string {
	if c, ok := adjustmentCategories[group]; ok {
		return c
	}
	return "other"
}
