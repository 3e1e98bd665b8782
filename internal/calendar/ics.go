package calendar

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"
)

// maxLineOctets is the content line limit before folding, excluding CRLF.
const maxLineOctets = 75

// ProductID identifies lotledger in exported calendars.
const ProductID = "-//lotledger//Campus Parking Events//EN"

var icsEscaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\;`,
	",", `\,`,
	"\r\n", `\n`,
	"\n", `\n`,
)

// WriteICS writes events as an iCalendar feed of all-day VEVENTs. stamp is
// used for DTSTAMP.
func WriteICS(w io.Writer, name string, events []*Event, stamp time.Time) error {
	bw := bufio.NewWriter(w)
	line := func(format string, args ...any) {
		bw.WriteString(fold(fmt.Sprintf(format, args...)))
		bw.WriteString("\r\n")
	}

	line("BEGIN:VCALENDAR")
	line("VERSION:2.0")
	line("PRODID:%s", ProductID)
	line("CALSCALE:GREGORIAN")
	line("METHOD:PUBLISH")
	line("X-WR-CALNAME:%s", icsEscaper.Replace(name))

	dtstamp := stamp.UTC().Format("20060102T150405Z")
	for _, ev := range events {
		day := ev.Day()
		line("BEGIN:VEVENT")
		line("UID:%s@lotledger", ev.ID)
		line("DTSTAMP:%s", dtstamp)
		line("DTSTART;VALUE=DATE:%s", day.Format("20060102"))
		line("DTEND;VALUE=DATE:%s", day.AddDate(0, 0, 1).Format("20060102"))
		line("SUMMARY:%s", icsEscaper.Replace(ev.Title))
		line("LOCATION:%s", icsEscaper.Replace(ev.Venue))
		line("DESCRIPTION:%s", icsEscaper.Replace(description(ev)))
		line("CATEGORIES:%s", icsEscaper.Replace(string(ev.Type)))
		line("END:VEVENT")
	}
	line("END:VCALENDAR")

	return bw.Flush()
}

func description(ev *Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s impact. Time: %s.", ev.Impact, ev.Time)
	if len(ev.LotsAffected) > 0 {
		fmt.Fprintf(&b, "\nLots affected: %s", strings.Join(ev.LotsAffected, ", "))
	}
	if ev.Notes != "" {
		fmt.Fprintf(&b, "\n%s", ev.Notes)
	}
	return b.String()
}

// fold splits a content line into chunks of at most maxLineOctets octets,
// continuation chunks starting with a space. UTF-8 sequences are never
// split.
func fold(s string) string {
	if len(s) <= maxLineOctets {
		return s
	}
	var b strings.Builder
	limit := maxLineOctets
	for len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		b.WriteString(s[:cut])
		b.WriteString("\r\n ")
		s = s[cut:]
		// The leading space counts toward the next line.
		limit = maxLineOctets - 1
	}
	b.WriteString(s)
	return b.String()
}
