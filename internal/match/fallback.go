package match

import "github.com/opengov-labs/kestrel/internal/domain"

// violationTemplate is one entry of the deterministic fallback policy.
type violationTemplate struct {
	code        string
	explanation string
}

// fallbackTemplates maps a complaint category to ordered violation templates
// used when no external judgment collaborator is configured.
var fallbackTemplates = map[string][]violationTemplate{
	domain.CategoryWaitingTime: {
		{"2.1.1", "Service performance monitoring standards require tracking and minimizing customer wait times. Excessive waiting indicates non-compliance with SLA requirements."},
		{"1.7.1", "Instant digital support within service channel is required to reduce unnecessary in-person wait times and provide real-time queue management."},
	},
	domain.CategoryEmployeeConduct: {
		{"2.3.1", "Customer experience management standards require professional and courteous staff interactions at all service touchpoints."},
		{"2.2.1", "Customer feedback management standards require that entities address and act on feedback about staff conduct."},
	},
	domain.CategoryProcessComplexity: {
		{"1.5.1", "Simplifying customer journey standards require entities to minimize the number of steps and documents required from customers."},
		{"1.2.1", "Form quality and validation features must ensure forms are clear, simple, and guide the customer through completion without unnecessary complexity."},
	},
	domain.CategoryAccessibility: {
		{"1.1.1", "All customer authentication and service steps must meet WCAG 2.2 accessibility standards and provide clear error messages."},
		{"1.3.1", "Language consistency in user journey requires services to be fully available in both Arabic and English."},
	},
	domain.CategoryCommunication: {
		{"2.4.1", "Proactive communication standards require entities to keep customers informed about service status and any changes."},
		{"1.7.3", "Service channels must provide timely notifications and updates to customers about their service requests."},
	},
	domain.CategoryFees: {
		{"1.6.1", "Clarity of fees, payment, and receipts standards require all service fees to be clearly displayed before the customer commits to the service."},
	},
	domain.CategoryDigitalExperience: {
		{"1.7.1", "Instant digital support within service channel requires reliable and responsive digital service delivery."},
		{"1.8.1", "Channel effectiveness standards require digital services to function properly even in low connectivity environments."},
		{"1.7.7", "Digital service channels must maintain uptime standards and gracefully handle system errors without losing customer data."},
	},
	domain.CategoryInfoClarity: {
		{"1.4.1", "Digital literacy and help content standards require clear, accessible guidance to be available for all services."},
		{"1.9.1", "Content consistency and national design system standards require uniform, clear information across all service channels."},
	},
	domain.CategoryComplaintHandling: {
		{"2.2.1", "Customer feedback management requires entities to acknowledge, track, and resolve all complaints within defined timelines."},
		{"2.1.4", "Service performance monitoring must include tracking of complaint resolution rates and response times."},
	},
	domain.CategoryServiceQuality: {
		{"2.1.1", "Service performance monitoring standards require entities to maintain measurable quality benchmarks for all services."},
		{"2.3.1", "Customer experience management requires consistent, high-quality service delivery across all channels."},
	},
}

// fallbackViolations applies the deterministic policy: category selects the
// template list (defaulting to service_quality), severity caps the count
// (critical 4, high 3, otherwise 2) and sets the confidence.
func fallbackViolations(category string, severity domain.Severity) []domain.Violation {
	templates, ok := fallbackTemplates[category]
	if !ok {
		templates = fallbackTemplates[domain.CategoryServiceQuality]
	}

	max := 2
	switch severity {
	case domain.SeverityCritical:
		max = 4
	case domain.SeverityHigh:
		max = 3
	}
	if max > len(templates) {
		max = len(templates)
	}

	confidence := domain.ConfidenceMedium
	if severity == domain.SeverityCritical || severity == domain.SeverityHigh {
		confidence = domain.ConfidenceHigh
	}

	out := make([]domain.Violation, 0, max)
	for _, t := range templates[:max] {
		out = append(out, domain.Violation{
			Code:        t.code,
			Confidence:  confidence,
			Explanation: t.explanation,
		})
	}
	return out
}
