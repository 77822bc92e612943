// Package main is the entry point of gitlab-vuln-report, which pulls
// vulnerability counts from GitLab and writes a per-scrum XLSX report.
package main

import "github.com/ortelius/gitlab-vuln-report/cmd"

func main() {
	cmd.Execute()
}
