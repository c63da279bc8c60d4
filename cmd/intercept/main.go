// Command intercept is a policy-as-code compliance engine.
//
// It evaluates a declarative policy of rules against a target file tree and
// optionally against live HTTP endpoints, then produces a report and an exit
// status that gates CI pipelines. The observe command re-evaluates the policy
// on a schedule and notifies a webhook of violations not seen before.
//
// Usage:
//
//	intercept validate policy.yaml
//	intercept audit ./src --policy policy.yaml
//	intercept observe ./src --policy policy.yaml --schedule "@every 1m"
//	intercept version
package main

func main() {
	Execute()
}
