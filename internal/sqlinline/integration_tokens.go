package sqlinline

// QSelectIntegrationToken reads the stored bearer token for a provider.
const QSelectIntegrationToken = `--sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7
select token
from integration_tokens
where provider = $1::text
limit 1;
`

// QUpsertIntegrationToken stores or rotates a provider token.
const QUpsertIntegrationToken = `--sql 6d4f5660-0f7c-4f73-a1f3-9ab6d5e6c7a3
with incoming as (
    select
        $1::text as provider,
        $2::text as token,
        coalesce($3::jsonb, '{}'::jsonb) as properties
)
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), (select provider from incoming), (select token from incoming), (select properties from incoming), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`

// QDeleteIntegrationToken removes a provider token.
const QDeleteIntegrationToken = `--sql 3f1c2b9e-5a7d-4e0b-9c61-2d8f4a6b7e10
delete from integration_tokens
where provider = $1::text;
`

// QEnsureIntegrationTokens creates the token table when it does not exist yet.
const QEnsureIntegrationTokens = `--sql c4e2a7d1-9b3f-4a58-8e6d-1f0b7c5a2d93
create table if not exists integration_tokens (
    id uuid primary key,
    provider text not null unique,
    token text not null,
    properties jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`
