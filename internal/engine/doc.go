// Package engine filters a user population and applies role assignments to it.
//
// A Session fetches roles and users through a Gateway, narrows them with a
// Pipeline according to a FilterState, and keeps a SelectionSet that is
// cleared whenever the filter or the population changes. An Assigner turns a
// bulk request or a role Diff into one attribution call per user and role,
// with bounded concurrency and no cross-user atomicity. UserEditor drives the
// create and edit flows through a Modal state machine.
package engine
