// Package alerts provides the business boundary for the AML investigation
// queue. It defines the Service (queue view, status lifecycle with audit
// trail, statistics, similarity ranking), the Store and CustomerLookup
// interfaces (persistence), and the domain models.
package alerts
