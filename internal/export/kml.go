package export

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/wethinkt/go-cdrintel/internal/cdr"
)

const (
	kmlNamespace   = "http://www.opengis.net/kml/2.2"
	kmlMarkerIcon  = "http://maps.google.com/mapfiles/kml/shapes/placemark_circle.png"
	kmlPathColor   = "ff00ffff"
	kmlPathWidth   = 3
	kmlMarkerScale = 1.2
)

type kmlRoot struct {
	XMLName  xml.Name    `xml:"kml"`
	NS       string      `xml:"xmlns,attr"`
	Document kmlDocument `xml:"Document"`
}

type kmlDocument struct {
	Name        string         `xml:"name"`
	Description string         `xml:"description"`
	Styles      []kmlStyle     `xml:"Style"`
	Placemarks  []kmlPlacemark `xml:"Placemark"`
}

type kmlStyle struct {
	ID        string        `xml:"id,attr"`
	LineStyle *kmlLineStyle `xml:"LineStyle,omitempty"`
	IconStyle *kmlIconStyle `xml:"IconStyle,omitempty"`
}

type kmlLineStyle struct {
	Color string `xml:"color"`
	Width int    `xml:"width"`
}

type kmlIconStyle struct {
	Href  string  `xml:"Icon>href"`
	Scale float64 `xml:"scale"`
}

type kmlPlacemark struct {
	Name        string         `xml:"name"`
	Description *kmlCDATA      `xml:"description,omitempty"`
	StyleURL    string         `xml:"styleUrl"`
	Point       *kmlPoint      `xml:"Point,omitempty"`
	LineString  *kmlLineString `xml:"LineString,omitempty"`
	Begin       string         `xml:"TimeSpan>begin,omitempty"`
}

type kmlCDATA struct {
	Text string `xml:",cdata"`
}

type kmlPoint struct {
	Coordinates string `xml:"coordinates"`
}

type kmlLineString struct {
	Tessellate  int    `xml:"tessellate"`
	Coordinates string `xml:"coordinates"`
}

// WriteKML writes the located records of doc as a KML document: one
// placemark per located record and a path through them in time order.
// Records without coordinates are left out.
func WriteKML(w io.Writer, doc *Document) error {
	title := doc.SuspectName
	if title == "" {
		title = doc.SessionID
	}
	out := kmlRoot{
		NS: kmlNamespace,
		Document: kmlDocument{
			Name: "CDR Path - " + title,
			Description: fmt.Sprintf("Call Detail Records visualization for %s. Generated on %s",
				title, doc.ExportedAt.Format("2006-01-02 15:04:05")),
			Styles: []kmlStyle{
				{ID: "pathStyle", LineStyle: &kmlLineStyle{Color: kmlPathColor, Width: kmlPathWidth}},
				{ID: "markerStyle", IconStyle: &kmlIconStyle{Href: kmlMarkerIcon, Scale: kmlMarkerScale}},
			},
		},
	}

	var path []string
	for i := range doc.Records {
		r := &doc.Records[i]
		if !r.HasCoordinates() {
			continue
		}
		coord := fmt.Sprintf("%g,%g,0", *r.LocationLon, *r.LocationLat)
		path = append(path, coord)
		out.Document.Placemarks = append(out.Document.Placemarks, kmlPlacemark{
			Name:        fmt.Sprintf("Call %d", i+1),
			Description: &kmlCDATA{Text: placemarkTable(r)},
			StyleURL:    "#markerStyle",
			Point:       &kmlPoint{Coordinates: coord},
			Begin:       r.CallStartTime.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	if len(path) > 1 {
		out.Document.Placemarks = append(out.Document.Placemarks, kmlPlacemark{
			Name:       "Path - " + title,
			StyleURL:   "#pathStyle",
			LineString: &kmlLineString{Tessellate: 1, Coordinates: strings.Join(path, " ")},
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode kml: %w", err)
	}
	return enc.Close()
}

func placemarkTable(r *cdr.Record) string {
	dur := "0"
	if r.DurationSeconds != nil {
		dur = fstr(r.DurationSeconds)
	}
	var b strings.Builder
	b.WriteString("<table>")
	row := func(k, v string) {
		fmt.Fprintf(&b, "<tr><td><b>%s:</b></td><td>%s</td></tr>", k, xmlEscape(v))
	}
	row("Time", r.CallStartTime.UTC().Format("2006-01-02 15:04:05"))
	row("Type", orNA(string(r.CallType)))
	row("Direction", orNA(string(r.Direction)))
	row("Called", orNA(r.MSISDNB))
	row("Duration", dur+"s")
	row("Cell ID", orNA(r.Location()))
	row("LAC", orNA(istr(r.LAC)))
	b.WriteString("</table>")
	return b.String()
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
