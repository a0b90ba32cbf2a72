// backend is the resource backend for region-proxy: a thin capability layer
// over the EC2 API that provisions and reclaims the three resources a proxy
// session owns.
//
// # Resources
//
//  1. Security Group - ingress on the SSH port only
//  2. Key Pair - ED25519 key generated locally, public half imported to EC2
//  3. Instance - latest Amazon Linux 2023 image for the requested architecture
//
// Every resource is tagged 'CreatedBy=region-proxy'. That tag, and nothing
// else, is what 'FindTaggedResources' uses to find resources to reclaim.
//
// # Waiting
//
// All waits are bounded 'retry.Policy' values held on the 'Client'
// ('DefaultPolicies' documents the production budgets). A security group
// cannot be deleted while the instance ENI still references it, and that
// detachment completes asynchronously after termination, so group deletion is
// retried rather than attempted once.
package backend
