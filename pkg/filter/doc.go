// Package filter implements software matching of inbound CAN frames against
// an ordered rule list.
//
// A rule names a handler and constrains the arbitration identifier to an
// inclusive range plus up to eight byte-equality conditions on the payload
// (wildcard positions match anything). Rules are compiled once from
// configuration and are read-only afterwards; Match is a pure function.
package filter
