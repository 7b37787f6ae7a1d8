// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

const (
	SpanHTTPRequest    = "http.request"
	SpanRoute          = "orgrouter.route"
	SpanClassify       = "orgrouter.classify"
	SpanDownstreamCall = "orgrouter.downstream_call"
	SpanCardFetch      = "orgrouter.card_fetch"

	AttrHTTPMethod       = "http.request.method"
	AttrHTTPPath         = "url.path"
	AttrHTTPStatusCode   = "http.response.status_code"
	AttrHTTPResponseSize = "http.response.body.size"
	AttrErrorType        = "error.type"

	AttrCorrelationID = "orgrouter.correlation_id"
	AttrCaller        = "orgrouter.caller"
	AttrTarget        = "orgrouter.target"
	AttrSource        = "orgrouter.decision_source"
	AttrDisagrees     = "orgrouter.disagrees"
	AttrAgent         = "orgrouter.agent"
	AttrAgentURL      = "orgrouter.agent_url"
	AttrFailedAgents  = "orgrouter.failed_agents"

	DefaultServiceName  = "orgrouter"
	DefaultSamplingRate = 1.0
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultMetricsPath  = "/metrics"
)
