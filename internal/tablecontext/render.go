package tablecontext

import (
	"strings"
	"text/template"

	"github.com/JonMunkholm/SurveyBot/internal/schema"
)

// The <tableName>, <tableDescription> and <columns> markers are referenced
// verbatim by the prompt rules and must not change.
const blockTemplate = `
Here is the table name <tableName> {{.Table}} </tableName>

<tableDescription>{{.Description}}</tableDescription>

Here are the columns of the {{.Table}}

<columns>

{{range $i, $c := .Columns}}{{if $i}}
{{end}}- **{{$c.Name}}**: {{$c.Type}}{{end}}

</columns>
    {{with .Enrichment}}

Available variables by {{.Column}}:

{{range $i, $v := .Values}}{{if $i}}
{{end}}- **{{$v}}**: {{$v}}{{end}}{{end}}`

var blockTmpl = template.Must(template.New("block").Parse(blockTemplate))

type blockData struct {
	Table       string
	Description string
	Columns     []schema.Column
	Enrichment  *enrichmentData
}

type enrichmentData struct {
	Column string
	Values []string
}

func render(table schema.TableIdentifier, description string, columns []schema.Column, enrichment *Enrichment, values []string) (string, error) {
	data := blockData{
		Table:       table.String(),
		Description: description,
		Columns:     columns,
	}
	if enrichment != nil {
		data.Enrichment = &enrichmentData{Column: enrichment.Column, Values: values}
	}

	var sb strings.Builder
	if err := blockTmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
