package types

// ModelSpec identifies the servable a request targets. Version 0 means
// "latest available"; SignatureName defaults to the serving signature.
type ModelSpec struct {
	// Model name.
	// example: half_plus_two
	Name string `json:"name"`
	// Explicit version; 0 selects the latest available version.
	// example: 2
	Version int64 `json:"version,omitempty"`
	// Graph signature to run; empty selects the default serving signature.
	// example: serving_default
	SignatureName string `json:"signature_name,omitempty"`
}

// TensorEncoding selects how tensor payloads are carried in responses.
type TensorEncoding string

const (
	// EncodingValues carries tensors as structured numeric values.
	EncodingValues TensorEncoding = "values"
	// EncodingContent carries tensors as raw packed bytes.
	EncodingContent TensorEncoding = "content"
)

// Tensor is an opaque typed payload handed to and returned by the
// execution engine. Exactly one of Values or Content is populated,
// depending on the response encoding in effect.
type Tensor struct {
	Dtype  string    `json:"dtype"`
	Shape  []int64   `json:"shape,omitempty"`
	Values []float64 `json:"values,omitempty"`
	// Raw packed representation, used with EncodingContent.
	Content []byte `json:"content,omitempty"`
}

// Example is one input row for classify/regress style calls.
type Example struct {
	Features map[string]float64 `json:"features"`
}

// Classification is a single (label, score) pair.
type Classification struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ClassifyRequest asks a servable to classify a batch of examples.
type ClassifyRequest struct {
	Spec     ModelSpec `json:"model_spec"`
	Examples []Example `json:"examples"`
}

// ClassifyResponse carries one classification list per input example.
type ClassifyResponse struct {
	Spec    ModelSpec          `json:"model_spec"`
	Results [][]Classification `json:"results"`
}

// RegressRequest asks a servable for one regression value per example.
type RegressRequest struct {
	Spec     ModelSpec `json:"model_spec"`
	Examples []Example `json:"examples"`
}

// RegressResponse carries one value per input example.
type RegressResponse struct {
	Spec   ModelSpec `json:"model_spec"`
	Values []float64 `json:"values"`
}

// PredictRequest runs the servable's graph on named input tensors.
type PredictRequest struct {
	Spec   ModelSpec         `json:"model_spec"`
	Inputs map[string]Tensor `json:"inputs"`
}

// PredictResponse carries named output tensors. Encoding records which
// tensor representation was applied.
type PredictResponse struct {
	Spec     ModelSpec         `json:"model_spec"`
	Outputs  map[string]Tensor `json:"outputs"`
	Encoding TensorEncoding    `json:"encoding,omitempty"`
}

// InferenceTask is one (signature, method) pair within a multi-inference
// call. Method is "classify" or "regress".
type InferenceTask struct {
	Spec   ModelSpec `json:"model_spec"`
	Method string    `json:"method"`
}

// MultiInferenceRequest runs several tasks over a shared example batch.
type MultiInferenceRequest struct {
	Spec     ModelSpec       `json:"model_spec"`
	Examples []Example       `json:"examples"`
	Tasks    []InferenceTask `json:"tasks"`
}

// InferenceResult is the per-task result; exactly one of Classify or
// Regress is set, matching the task's method.
type InferenceResult struct {
	Spec     ModelSpec         `json:"model_spec"`
	Classify *ClassifyResponse `json:"classify,omitempty"`
	Regress  *RegressResponse  `json:"regress,omitempty"`
}

// MultiInferenceResponse carries one result per task, in task order.
type MultiInferenceResponse struct {
	Results []InferenceResult `json:"results"`
}

// MetadataFieldSignatureDef is the only metadata field servables expose.
const MetadataFieldSignatureDef = "signature_def"

// MetadataRequest asks for model metadata fields. Only
// MetadataFieldSignatureDef is supported; an empty list means that field.
type MetadataRequest struct {
	Spec           ModelSpec `json:"model_spec"`
	MetadataFields []string  `json:"metadata_fields,omitempty"`
}

// TensorInfo describes one signature input or output.
type TensorInfo struct {
	Dtype string  `json:"dtype"`
	Shape []int64 `json:"shape,omitempty"`
}

// SignatureDef describes one callable graph signature.
type SignatureDef struct {
	MethodName string                `json:"method_name"`
	Inputs     map[string]TensorInfo `json:"inputs,omitempty"`
	Outputs    map[string]TensorInfo `json:"outputs,omitempty"`
}

// ModelMetadata is the metadata response payload.
type ModelMetadata struct {
	Spec       ModelSpec               `json:"model_spec"`
	Signatures map[string]SignatureDef `json:"signature_def"`
}

// ModelSource points at one loadable model version on disk.
type ModelSource struct {
	// Model name, taken from the directory name under the base path.
	// example: half_plus_two
	Name string `json:"name"`
	// Version number, taken from the numeric subdirectory name.
	// example: 2
	Version int64 `json:"version"`
	// Absolute path to the version directory.
	// example: /srv/models/half_plus_two/2
	Path string `json:"path"`
}
