// Package services maps well-known TCP ports to human-readable service names.
package services

import (
	"maps"
	"slices"
)

// Unknown is returned for ports absent from the table.
const Unknown = "Unknown"

// Entry is one row of the lookup table.
type Entry struct {
	Port uint16 `json:"port"`
	Name string `json:"name"`
}

var table = map[uint16]string{
	20:    "FTP Data",
	21:    "FTP",
	22:    "SSH",
	23:    "Telnet",
	25:    "SMTP",
	53:    "DNS",
	67:    "DHCP",
	69:    "TFTP",
	80:    "HTTP",
	88:    "Kerberos",
	110:   "POP3",
	111:   "RPC",
	119:   "NNTP",
	123:   "NTP",
	135:   "RPC Endpoint",
	137:   "NetBIOS Name",
	139:   "NetBIOS",
	143:   "IMAP",
	161:   "SNMP",
	389:   "LDAP",
	443:   "HTTPS",
	445:   "SMB",
	465:   "SMTPS",
	514:   "Syslog",
	587:   "Submission",
	636:   "LDAPS",
	873:   "rsync",
	993:   "IMAPS",
	995:   "POP3S",
	1433:  "MSSQL",
	1521:  "Oracle DB",
	1723:  "PPTP",
	2049:  "NFS",
	2375:  "Docker",
	3306:  "MySQL",
	3389:  "RDP",
	5432:  "PostgreSQL",
	5672:  "AMQP",
	5900:  "VNC",
	6379:  "Redis",
	8080:  "HTTP Proxy",
	8443:  "HTTPS Alt",
	8888:  "HTTP Alt",
	9090:  "HTTP Alt",
	9200:  "Elasticsearch",
	11211: "Memcached",
	27017: "MongoDB",
}

// Describe returns the service name for port, or Unknown.
func Describe(port uint16) string {
	if name, ok := table[port]; ok {
		return name
	}
	return Unknown
}

// All returns the full table sorted by port.
func All() []Entry {
	entries := make([]Entry, 0, len(table))
	for _, port := range slices.Sorted(maps.Keys(table)) {
		entries = append(entries, Entry{Port: port, Name: table[port]})
	}
	return entries
}
