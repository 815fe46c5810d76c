package syntax

// SetFaultReporter replaces where p reports a panicking logger.
func SetFaultReporter(p *Parser, report func(error)) {
	p.reportFault = report
}
