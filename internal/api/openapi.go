package api

import (
	"github.com/JaimeStill/einvoice/internal/batch"
	"github.com/JaimeStill/einvoice/pkg/openapi"
)

func str(desc string) *openapi.Schema {
	return &openapi.Schema{Type: "string", Description: desc}
}

func uuidSchema(desc string) *openapi.Schema {
	return &openapi.Schema{Type: "string", Format: "uuid", Description: desc}
}

func integer(desc string) *openapi.Schema {
	return &openapi.Schema{Type: "integer", Description: desc}
}

func enum(desc string, values ...any) *openapi.Schema {
	return &openapi.Schema{Type: "string", Description: desc, Enum: values}
}

// buildSpec describes every route registered by registerRoutes.
func buildSpec(cfg *openapi.Config, version, basePath string) *openapi.Spec {
	spec := openapi.NewSpec(cfg, version)
	spec.AddServer(basePath)
	spec.Components.AddSchemas(schemas())

	documentID := openapi.PathParam("id", "Document ID")
	batchID := openapi.PathParam("id", "Batch ID")

	spec.AddPath("/documents", &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "List documents",
			Tags:    []string{"documents"},
			Parameters: []*openapi.Parameter{
				openapi.QueryParam("page", "integer", "Page number", false),
				openapi.QueryParam("page_size", "integer", "Results per page", false),
				openapi.QueryParam("sort", "string", "Sort fields", false),
				openapi.QueryParam("status", "string", "Filter by status (repeatable)", false),
				openapi.QueryParam("kind", "string", "Filter by kind", false),
				openapi.QueryParam("internal_id", "string", "Filter by internal ID", false),
				openapi.QueryParam("external_ref", "string", "Filter by ETA UUID", false),
			},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Document page", "DocumentPage"),
			},
		},
		Post: &openapi.Operation{
			Summary:     "Create a draft document",
			Tags:        []string{"documents"},
			RequestBody: openapi.RequestBodyJSON("CreateDocument", true),
			Responses: map[int]*openapi.Response{
				201: openapi.ResponseJSON("Created document", "Document"),
				400: openapi.ResponseRef("BadRequest"),
				409: openapi.ResponseRef("Conflict"),
				413: openapi.ResponseRef("PayloadTooLarge"),
			},
		},
	})

	spec.AddPath("/documents/search", &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Search documents",
			Tags:        []string{"documents"},
			RequestBody: openapi.RequestBodyJSON("DocumentSearch", true),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Document page", "DocumentPage"),
				400: openapi.ResponseRef("BadRequest"),
			},
		},
	})

	spec.AddPath("/documents/{id}", &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Find a document",
			Tags:       []string{"documents"},
			Parameters: []*openapi.Parameter{documentID},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Document", "Document"),
				400: openapi.ResponseRef("BadRequest"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
	})

	spec.AddPath("/batches", &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "List in-flight batches",
			Tags:    []string{"batches"},
			Responses: map[int]*openapi.Response{
				200: {
					Description: "Batch statuses",
					Content: map[string]*openapi.MediaType{
						"application/json": {Schema: &openapi.Schema{Type: "array", Items: openapi.SchemaRef("BatchStatus")}},
					},
				},
			},
		},
		Post: &openapi.Operation{
			Summary:     "Submit a batch and wait for its result",
			Description: "Signs and submits every document with bounded parallelism and per-document retry. Exactly one notification is sent per batch.",
			Tags:        []string{"batches"},
			RequestBody: openapi.RequestBodyJSON("SubmitBatch", true),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Batch result", "BatchResult"),
				400: openapi.ResponseRef("BadRequest"),
				409: openapi.ResponseRef("Conflict"),
				413: openapi.ResponseRef("PayloadTooLarge"),
				503: openapi.ResponseRef("Unavailable"),
			},
		},
	})

	spec.AddPath("/batches/{id}", &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:     "Batch status",
			Description: "Unknown or finished batches report state unknown.",
			Tags:        []string{"batches"},
			Parameters:  []*openapi.Parameter{batchID},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Batch status", "BatchStatus"),
				400: openapi.ResponseRef("BadRequest"),
			},
		},
	})

	spec.AddPath("/batches/{id}/cancel", &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:    "Request batch cancellation",
			Tags:       []string{"batches"},
			Parameters: []*openapi.Parameter{batchID},
			Responses: map[int]*openapi.Response{
				202: openapi.ResponseJSON("Cancellation requested", "BatchStatus"),
				400: openapi.ResponseRef("BadRequest"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
	})

	spec.AddPath("/receipts/{id}", &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Archived ETA submission receipt",
			Tags:       []string{"receipts"},
			Parameters: []*openapi.Parameter{documentID},
			Responses: map[int]*openapi.Response{
				200: {
					Description: "Raw ETA submission response",
					Content:     map[string]*openapi.MediaType{"application/json": {Schema: &openapi.Schema{Type: "object"}}},
				},
				400: openapi.ResponseRef("BadRequest"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
	})

	return spec
}

func schemas() map[string]*openapi.Schema {
	status := enum("Submission status", "draft", "submitting", "submitted", "rejected", "failed")
	kind := enum("Document kind", "invoice", "receipt")

	return map[string]*openapi.Schema{
		"Document": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":            uuidSchema("Document ID"),
				"kind":          kind,
				"internal_id":   str("Issuer-side document number"),
				"status":        status,
				"payload":       {Type: "object", Description: "ETA document body"},
				"signature_key": str("Storage key of the detached signature"),
				"external_ref":  str("ETA-assigned UUID, set only when submitted"),
				"last_error":    str("Last failure reason"),
				"attempts":      integer("Submission attempts made"),
				"submitted_at":  {Type: "string", Format: "date-time"},
				"created_at":    {Type: "string", Format: "date-time"},
				"updated_at":    {Type: "string", Format: "date-time"},
			},
		},
		"DocumentPage": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"data":        {Type: "array", Items: openapi.SchemaRef("Document")},
				"total":       integer("Total matching documents"),
				"page":        integer("Current page"),
				"page_size":   integer("Results per page"),
				"total_pages": integer("Total pages"),
			},
		},
		"CreateDocument": {
			Type:     "object",
			Required: []string{"kind", "internal_id", "payload"},
			Properties: map[string]*openapi.Schema{
				"kind":        kind,
				"internal_id": str("Issuer-side document number"),
				"payload":     {Type: "object", Description: "ETA document body"},
			},
		},
		"DocumentSearch": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"page":         integer("Page number"),
				"page_size":    integer("Results per page"),
				"statuses":     {Type: "array", Items: status},
				"kind":         kind,
				"internal_id":  str("Internal ID filter"),
				"external_ref": str("ETA UUID filter"),
			},
		},
		"BatchOptions": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"max_degree_of_parallelism": integer("Concurrent documents").Range(openapi.Bound(1), nil),
				"max_retry_attempts":        integer("Attempts per document").Range(openapi.Bound(1), nil),
				"retry_delay_base":          str("Backoff base duration, e.g. 2s"),
				"continue_on_error":         {Type: "boolean"},
				"submission_chunk_size":     integer("Documents per submission").Range(openapi.Bound(1), openapi.Bound(batch.MaxSubmissionChunkSize)),
				"retry_rejected":            {Type: "boolean"},
			},
		},
		"SubmitBatch": {
			Type:     "object",
			Required: []string{"document_ids"},
			Properties: map[string]*openapi.Schema{
				"batch_id":     uuidSchema("Caller-supplied batch ID"),
				"document_ids": {Type: "array", Items: &openapi.Schema{Type: "string", Format: "uuid"}},
				"credential":   str("Signing credential passed to the signing bridge"),
				"options":      openapi.SchemaRef("BatchOptions"),
			},
		},
		"BatchItem": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"document_id":  uuidSchema("Document ID"),
				"outcome":      enum("Item outcome", "succeeded", "skipped", "failed", "cancelled"),
				"success":      {Type: "boolean"},
				"attempts":     integer("Attempts made"),
				"error":        str("Failure reason"),
				"error_kind":   enum("Failure category", "not_found", "invalid_document", "signing", "transport", "rejected", "store", "cancelled"),
				"external_ref": str("ETA-assigned UUID"),
			},
		},
		"BatchResult": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"batch_id":     uuidSchema("Batch ID"),
				"status":       enum("Batch status", "completed", "cancelled"),
				"total":        integer("Documents in the batch"),
				"started":      integer("Documents whose processing began"),
				"succeeded":    integer("Documents submitted or already submitted"),
				"failed":       integer("Documents that failed"),
				"cancelled":    integer("Documents cancelled or never started"),
				"items":        {Type: "array", Items: openapi.SchemaRef("BatchItem")},
				"duration":     integer("Elapsed nanoseconds"),
				"started_at":   {Type: "string", Format: "date-time"},
				"completed_at": {Type: "string", Format: "date-time"},
			},
		},
		"BatchStatus": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"batch_id":         uuidSchema("Batch ID"),
				"state":            enum("Registry state", "processing", "completed", "unknown"),
				"cancel_requested": {Type: "boolean"},
				"total":            integer("Documents in the batch"),
				"started":          integer("Documents started"),
				"succeeded":        integer("Documents succeeded"),
				"failed":           integer("Documents failed"),
				"cancelled":        integer("Documents cancelled"),
				"started_at":       {Type: "string", Format: "date-time"},
			},
		},
	}
}
