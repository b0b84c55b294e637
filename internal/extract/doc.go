// Package extract turns a loaded event-detail page into a structured booking
// record.
//
// The detail page has no stable schema: fields sit next to label text, not
// behind IDs. Extraction therefore walks every text-bearing node in document
// order and, per target field, takes the value from the node immediately
// after the first node containing that field's label keywords. Every field
// is independently optional; a miss is recorded as an empty value and
// extraction continues.
//
// Phone numbers get their own path: they are not label-prefixed on most
// deployments and only render after the client's contact element is clicked,
// so the package performs that reveal interaction and mines the resulting
// markup with an ordered, most-specific-first pattern list.
package extract
