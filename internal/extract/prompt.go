package extract

import (
	"fmt"

	"github.com/invopop/jsonschema"
)

const (
	systemPrompt = "You extract structured data from transcripts."
	schemaName   = "caller_profile"
)

const userPromptTemplate = `Extract the following fields from this phone call transcript:

Transcript:
"""
%s
"""

Return JSON only with this structure:

{
  "firstName": "",
  "lastName": "",
  "email": "",
  "businessName": "",
  "summary": ""
}
`

func userPrompt(transcript string) string {
	return fmt.Sprintf(userPromptTemplate, transcript)
}

// profileSchema is the strict response schema sent with every request.
var profileSchema = generateSchema[Profile]()

func generateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}
